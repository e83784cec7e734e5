package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/sdlink/types"
)

// Encoding names accepted by NewCodec, NewSource and NewSink.
const (
	EncodingJSONL   = "jsonl"
	EncodingMsgpack = "msgpack"
	EncodingCBOR    = "cbor"
)

// Encodings lists the supported encoding names.
var Encodings = []string{EncodingJSONL, EncodingMsgpack, EncodingCBOR}

// Codec converts chunk envelopes to and from their wire bytes.
// Decode failures are returned as *FrameError with Kind=FrameErrorDecode.
type Codec interface {
	Name() string
	Encode(env *types.ChunkEnvelope) ([]byte, error)
	Decode(data []byte) (*types.ChunkEnvelope, error)
}

// NewCodec returns the codec for an encoding name.
func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case EncodingJSONL:
		return JSONCodec{}, nil
	case EncodingMsgpack:
		return MsgpackCodec{}, nil
	case EncodingCBOR:
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q (valid: %v)", encoding, Encodings)
	}
}

// compactEnvelope is the JSON shape the device firmware writes.
type compactEnvelope struct {
	T   string `json:"t"`
	S   int    `json:"s"`
	N   int    `json:"n"`
	P   string `json:"p"`
	E   bool   `json:"e"`
	F   string `json:"f,omitempty"`
	B   bool   `json:"b,omitempty"`
	Err string `json:"err,omitempty"`
}

// jsonEnvelope also accepts the long keys used by the listing streamer.
// Compact keys win when both are present.
type jsonEnvelope struct {
	compactEnvelope
	Type    string `json:"type"`
	Seq     int    `json:"seq"`
	Total   int    `json:"total"`
	Payload string `json:"payload"`
	End     bool   `json:"end"`
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// JSONCodec handles the JSON envelope forms.
// Binary payloads (b:true) travel base64 encoded per envelope and are
// decoded here so that fragments concatenate as raw bytes.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return EncodingJSONL }

// Encode writes the compact key form.
func (JSONCodec) Encode(env *types.ChunkEnvelope) ([]byte, error) {
	out := compactEnvelope{
		T:   env.Type,
		S:   env.Seq,
		N:   env.Total,
		E:   env.IsFinal,
		F:   env.File,
		B:   env.Binary,
		Err: env.Err,
	}
	if env.Binary {
		out.P = base64.StdEncoding.EncodeToString(env.Payload)
	} else {
		out.P = string(env.Payload)
	}
	return json.Marshal(out)
}

// Decode parses either key form.
func (JSONCodec) Decode(data []byte) (*types.ChunkEnvelope, error) {
	var in jsonEnvelope
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, decodeError("failed to decode json envelope", err)
	}

	env := &types.ChunkEnvelope{
		Type:    firstString(in.T, in.Type),
		Seq:     firstInt(in.S, in.Seq),
		Total:   firstInt(in.N, in.Total),
		IsFinal: in.E || in.End,
		File:    in.F,
		Binary:  in.B,
		Err:     in.Err,
	}

	payload := firstString(in.P, in.Payload)
	if env.Binary {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, decodeError(fmt.Sprintf("invalid base64 payload in %s chunk %d", env.Type, env.Seq), err)
		}
		env.Payload = raw
	} else {
		env.Payload = []byte(payload)
	}
	return env, nil
}

// MsgpackCodec encodes envelopes as msgpack maps with the compact keys.
type MsgpackCodec struct{}

// Name implements Codec.
func (MsgpackCodec) Name() string { return EncodingMsgpack }

// Encode implements Codec.
func (MsgpackCodec) Encode(env *types.ChunkEnvelope) ([]byte, error) {
	return msgpack.Marshal(env)
}

// Decode implements Codec.
func (MsgpackCodec) Decode(data []byte) (*types.ChunkEnvelope, error) {
	var env types.ChunkEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, decodeError("failed to decode msgpack envelope", err)
	}
	return &env, nil
}

// CBORCodec encodes envelopes as CBOR maps with the compact keys.
type CBORCodec struct{}

// Name implements Codec.
func (CBORCodec) Name() string { return EncodingCBOR }

// Encode implements Codec.
func (CBORCodec) Encode(env *types.ChunkEnvelope) ([]byte, error) {
	return cbor.Marshal(env)
}

// Decode implements Codec.
func (CBORCodec) Decode(data []byte) (*types.ChunkEnvelope, error) {
	var env types.ChunkEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, decodeError("failed to decode cbor envelope", err)
	}
	return &env, nil
}
