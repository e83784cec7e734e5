// Package types defines core domain types shared by the sdlink packages.
//
//nolint:revive // types is a common Go package naming convention
package types

// Transfer kinds emitted by the device firmware.
const (
	// KindFileList carries a JSON directory listing.
	KindFileList = "FILE_LIST"
	// KindFileData carries the contents of a single file (PRINT command).
	KindFileData = "D"
)

// ChunkEnvelope is one unit of a chunked transmission.
// Field tags match the compact keys the device writes on the wire.
type ChunkEnvelope struct {
	// Type groups chunks belonging to the same logical transfer.
	Type string `msgpack:"t" cbor:"t"`
	// Seq is the 1-based position of this chunk within the transfer.
	Seq int `msgpack:"s" cbor:"s"`
	// Total is the declared chunk count for the transfer.
	Total int `msgpack:"n" cbor:"n"`
	// Payload is the fragment of the logical payload carried by this chunk.
	Payload []byte `msgpack:"p" cbor:"p"`
	// IsFinal marks the chunk that completes the transfer.
	IsFinal bool `msgpack:"e" cbor:"e"`
	// File is the source file name for file-data transfers.
	File string `msgpack:"f,omitempty" cbor:"f,omitempty"`
	// Binary is set when Payload holds raw file bytes rather than text.
	Binary bool `msgpack:"b,omitempty" cbor:"b,omitempty"`
	// Err is set on an error envelope; such envelopes carry no payload.
	Err string `msgpack:"err,omitempty" cbor:"err,omitempty"`
}

// Key returns the transfer key this envelope belongs to.
func (e *ChunkEnvelope) Key() TransferKey {
	return TransferKey{Type: e.Type, File: e.File}
}

// IsTerminal returns true if the envelope signals the end of its transfer,
// either explicitly or because it carries the last sequence number.
func (e *ChunkEnvelope) IsTerminal() bool {
	return e.IsFinal || e.Seq == e.Total
}

// IsError returns true if this is an error envelope.
func (e *ChunkEnvelope) IsError() bool {
	return e.Err != ""
}
