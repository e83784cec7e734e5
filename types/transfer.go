package types

import (
	"errors"
	"time"
)

// TransferKey identifies one logical transfer stream.
// File is empty for listings.
type TransferKey struct {
	Type string `json:"type"`
	File string `json:"file,omitempty"`
}

// String renders the key for logs, e.g. "D:/logs/data.txt".
func (k TransferKey) String() string {
	if k.File == "" {
		return k.Type
	}
	return k.Type + ":" + k.File
}

// Transfer is a fully reassembled payload.
type Transfer struct {
	Key TransferKey
	// Payload is the exact concatenation of all fragments in sequence order.
	Payload []byte
	// Chunks is the declared total of the completed transfer.
	Chunks int
	// Duplicates counts chunks delivered more than once.
	Duplicates int
	// Binary is true for file-data transfers carrying raw bytes.
	Binary      bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns the time between the first and the completing chunk.
func (t *Transfer) Duration() time.Duration {
	return t.CompletedAt.Sub(t.StartedAt)
}

// TransferFailure is reported when the device sends an error envelope.
type TransferFailure struct {
	Key     TransferKey
	Message string
	At      time.Time
}

// SessionMeta identifies one receive session.
type SessionMeta struct {
	// SessionID is unique per receive invocation.
	SessionID string
	// Device is a caller-chosen label for the sending device.
	Device string
}

// Validate checks that the session has an identity.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if m.Device == "" {
		return errors.New("device must be non-empty")
	}
	return nil
}
