package reassembly

import (
	"fmt"

	"github.com/pithecene-io/sdlink/types"
)

// Chunk sizes used by the device firmware.
const (
	// DefaultMaxChunk is the listing fragment size in bytes.
	DefaultMaxChunk = 400
	// DefaultFileBlock is the raw block size for file-data transfers.
	DefaultFileBlock = 64
)

// Split cuts payload into envelopes of at most maxChunk bytes, numbered
// from 1 with IsFinal on the last. An empty payload yields a single empty
// chunk so the receiver still sees a terminal envelope.
func Split(kind string, payload []byte, maxChunk int) ([]*types.ChunkEnvelope, error) {
	if kind == "" {
		return nil, fmt.Errorf("split: empty transfer type")
	}
	if maxChunk < 1 {
		return nil, fmt.Errorf("split: max chunk %d must be positive", maxChunk)
	}

	total := (len(payload) + maxChunk - 1) / maxChunk
	if total == 0 {
		total = 1
	}

	envs := make([]*types.ChunkEnvelope, 0, total)
	for i := range total {
		start := i * maxChunk
		end := min(start+maxChunk, len(payload))
		envs = append(envs, &types.ChunkEnvelope{
			Type:    kind,
			Seq:     i + 1,
			Total:   total,
			Payload: payload[start:end],
			IsFinal: i+1 == total,
		})
	}
	return envs, nil
}

// SplitFile cuts file contents into file-data envelopes tagged with name.
func SplitFile(name string, data []byte, blockSize int) ([]*types.ChunkEnvelope, error) {
	if name == "" {
		return nil, fmt.Errorf("split: empty file name")
	}
	envs, err := Split(types.KindFileData, data, blockSize)
	if err != nil {
		return nil, err
	}
	for _, env := range envs {
		env.File = name
		env.Binary = true
	}
	return envs, nil
}
