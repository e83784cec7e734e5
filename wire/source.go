package wire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/sdlink/types"
)

// MaxLineSize bounds a single console line.
const MaxLineSize = 64 * 1024

// Source yields decoded envelopes from a stream.
//
// Next returns io.EOF when the stream ends cleanly. A *FrameError with
// Kind=FrameErrorDecode loses only the current envelope and Next may be
// called again; any other error ends the stream.
type Source interface {
	Next() (*types.ChunkEnvelope, error)
}

// Sink writes envelopes to a stream.
type Sink interface {
	Write(env *types.ChunkEnvelope) error
}

// NewSource returns a source for the named encoding.
func NewSource(encoding string, r io.Reader) (Source, error) {
	codec, err := NewCodec(encoding)
	if err != nil {
		return nil, err
	}
	if encoding == EncodingJSONL {
		return NewLineSource(r), nil
	}
	return NewFrameSource(r, codec), nil
}

// NewSink returns a sink for the named encoding.
func NewSink(encoding string, w io.Writer) (Sink, error) {
	codec, err := NewCodec(encoding)
	if err != nil {
		return nil, err
	}
	if encoding == EncodingJSONL {
		return NewLineSink(w), nil
	}
	return NewFrameSink(w, codec), nil
}

// LineSource reads newline-delimited JSON envelopes as captured from the
// serial console. Lines that do not start with '{' are console output
// interleaved with the envelopes and are skipped.
type LineSource struct {
	scanner *bufio.Scanner
	codec   JSONCodec
	noise   int

	// OnNoise, if set, is called with every skipped non-empty line.
	OnNoise func(line string)
}

// NewLineSource creates a line source.
func NewLineSource(r io.Reader) *LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return &LineSource{scanner: scanner}
}

// Next implements Source.
func (s *LineSource) Next() (*types.ChunkEnvelope, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			s.noise++
			if s.OnNoise != nil {
				s.OnNoise(string(line))
			}
			continue
		}
		return s.codec.Decode(line)
	}

	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &FrameError{
				Kind: FrameErrorTooLarge,
				Msg:  fmt.Sprintf("line exceeds maximum %d bytes", MaxLineSize),
				Err:  err,
			}
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read line", Err: err}
	}
	return nil, io.EOF
}

// Noise returns the number of skipped console lines.
func (s *LineSource) Noise() int {
	return s.noise
}

// FrameSource reads length-prefixed envelopes.
type FrameSource struct {
	reader *FrameReader
	codec  Codec
}

// NewFrameSource creates a frame source decoding payloads with codec.
func NewFrameSource(r io.Reader, codec Codec) *FrameSource {
	return &FrameSource{reader: NewFrameReader(r), codec: codec}
}

// Next implements Source.
func (s *FrameSource) Next() (*types.ChunkEnvelope, error) {
	payload, err := s.reader.ReadFrame()
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(payload)
}

// LineSink writes one compact JSON envelope per line.
type LineSink struct {
	w     io.Writer
	codec JSONCodec
}

// NewLineSink creates a line sink.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

// Write implements Sink.
func (s *LineSink) Write(env *types.ChunkEnvelope) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	return nil
}

// FrameSink writes length-prefixed envelopes.
type FrameSink struct {
	writer *FrameWriter
	codec  Codec
}

// NewFrameSink creates a frame sink encoding with codec.
func NewFrameSink(w io.Writer, codec Codec) *FrameSink {
	return &FrameSink{writer: NewFrameWriter(w), codec: codec}
}

// Write implements Sink.
func (s *FrameSink) Write(env *types.ChunkEnvelope) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return s.writer.WriteFrame(data)
}
