// Package wire decodes chunk envelopes from captured device streams.
//
// Two stream shapes are supported: newline-delimited JSON as printed on the
// serial console, and 4-byte big-endian length-prefixed frames carrying
// msgpack or CBOR encoded envelopes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthPrefixSize is the width of the big-endian frame header.
	LengthPrefixSize = 4
	// MaxFrameSize bounds header plus payload. A chunk is a few hundred
	// bytes, so anything near this is a desynchronized stream.
	MaxFrameSize   = 1 << 20
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// FrameErrorKind says how much of the stream a FrameError costs.
type FrameErrorKind int

const (
	// FrameErrorPartial: the stream ended or failed inside a frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge: a header or line announced more than the limit.
	FrameErrorTooLarge
	// FrameErrorDecode: the frame was read but its envelope is garbage.
	FrameErrorDecode
)

var frameErrorKindNames = [...]string{
	FrameErrorPartial:  "partial",
	FrameErrorTooLarge: "too_large",
	FrameErrorDecode:   "decode",
}

func (k FrameErrorKind) String() string {
	if k >= 0 && int(k) < len(frameErrorKindNames) {
		return frameErrorKindNames[k]
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// FrameError is returned by sources and readers for stream damage.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *FrameError) Unwrap() error { return e.Err }

// IsFatal reports whether framing is lost. A decode error drops one
// envelope and the stream can go on.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

func frameKind(err error) (FrameErrorKind, bool) {
	var fe *FrameError
	if !errors.As(err, &fe) {
		return 0, false
	}
	return fe.Kind, true
}

// IsFatalFrameError reports whether err is a FrameError that ends the stream.
func IsFatalFrameError(err error) bool {
	kind, ok := frameKind(err)
	return ok && kind != FrameErrorDecode
}

// IsDecodeError reports whether err lost a single envelope.
func IsDecodeError(err error) bool {
	kind, ok := frameKind(err)
	return ok && kind == FrameErrorDecode
}

func decodeError(msg string, err error) *FrameError {
	return &FrameError{Kind: FrameErrorDecode, Msg: msg, Err: err}
}

func oversized(n int) *FrameError {
	return &FrameError{
		Kind: FrameErrorTooLarge,
		Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", n, MaxPayloadSize),
	}
}

// FrameReader splits a byte stream into length-prefixed payloads.
type FrameReader struct {
	r   io.Reader
	hdr [LengthPrefixSize]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame returns the next payload. io.EOF means the stream ended on a
// frame boundary. Ending anywhere else is a FrameErrorPartial.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	n := binary.BigEndian.Uint32(fr.hdr[:])
	if n > MaxPayloadSize {
		return nil, oversized(int(n))
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// FrameWriter is the sending half of FrameReader.
type FrameWriter struct {
	w io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame emits header and payload with one Write call so a frame is
// never interleaved on a shared writer.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return oversized(len(payload))
	}
	frame := binary.BigEndian.AppendUint32(make([]byte, 0, LengthPrefixSize+len(payload)), uint32(len(payload)))
	frame = append(frame, payload...)
	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
