// Package adapter defines the notification boundary for finished transfers.
//
// Adapters publish one event per completed or failed transfer to a
// downstream system. Publishing is best-effort: a failed publish is counted
// and logged but never stops the receive session.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/sdlink/types"
)

// Event types.
const (
	EventTransferCompleted = "transfer_completed"
	EventTransferFailed    = "transfer_failed"
)

// TransferCompletedEvent is the payload published when a transfer finishes.
type TransferCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // transfer_completed or transfer_failed
	SessionID       string `json:"session_id"`
	Device          string `json:"device,omitempty"`
	TransferType    string `json:"transfer_type"`
	File            string `json:"file,omitempty"`
	SizeBytes       int64  `json:"size_bytes"`
	Chunks          int    `json:"chunks"`
	Binary          bool   `json:"binary,omitempty"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	DurationMs      int64  `json:"duration_ms"`
}

// NewCompletedEvent builds the event for a reassembled transfer.
func NewCompletedEvent(session types.SessionMeta, t *types.Transfer) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		ContractVersion: types.Version,
		EventType:       EventTransferCompleted,
		SessionID:       session.SessionID,
		Device:          session.Device,
		TransferType:    t.Key.Type,
		File:            t.Key.File,
		SizeBytes:       int64(len(t.Payload)),
		Chunks:          t.Chunks,
		Binary:          t.Binary,
		Timestamp:       t.CompletedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:      t.Duration().Milliseconds(),
	}
}

// NewFailedEvent builds the event for a device-reported failure.
func NewFailedEvent(session types.SessionMeta, f *types.TransferFailure) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		ContractVersion: types.Version,
		EventType:       EventTransferFailed,
		SessionID:       session.SessionID,
		Device:          session.Device,
		TransferType:    f.Key.Type,
		File:            f.Key.File,
		Error:           f.Message,
		Timestamp:       f.At.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes transfer events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TransferCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry; it doubles per attempt.
const BaseBackoff = 500 * time.Millisecond

// Backoff returns the delay before retry attempt i (1-based).
func Backoff(i int) time.Duration {
	if i < 1 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * BaseBackoff
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when ctx is done or when permanent reports
// the error as not worth retrying. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
