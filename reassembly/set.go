package reassembly

import (
	"sort"

	"github.com/pithecene-io/sdlink/types"
)

// Set keeps one Reassembler per transfer key so that several transfers can
// be in flight at once. Resync still applies within a key: a new total for
// the same key replaces the old transfer.
//
// Not safe for concurrent use.
type Set struct {
	active map[types.TransferKey]*Reassembler
	stats  Stats
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{active: make(map[types.TransferKey]*Reassembler)}
}

// AddChunk routes env to the reassembler for its key.
// Completed reassemblers are released.
func (s *Set) AddChunk(env *types.ChunkEnvelope) (*Assembled, error) {
	if err := Validate(env); err != nil {
		s.stats.Rejected++
		return nil, err
	}

	key := env.Key()
	r, ok := s.active[key]
	if !ok {
		r = newWithStats(&s.stats)
		s.active[key] = r
	}

	done, err := r.AddChunk(env)
	if err != nil {
		return nil, err
	}
	if done != nil {
		delete(s.active, key)
	}
	return done, nil
}

// Expire discards the in-flight transfer for key.
// Returns true if one existed.
func (s *Set) Expire(key types.TransferKey) bool {
	r, ok := s.active[key]
	if !ok {
		return false
	}
	delete(s.active, key)
	return r.Reset()
}

// Progress returns the in-flight view for key.
func (s *Set) Progress(key types.TransferKey) (Progress, bool) {
	r, ok := s.active[key]
	if !ok {
		return Progress{}, false
	}
	return r.Progress()
}

// Keys returns the keys with a transfer in flight, sorted for stable output.
func (s *Set) Keys() []types.TransferKey {
	keys := make([]types.TransferKey, 0, len(s.active))
	for k := range s.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].File < keys[j].File
	})
	return keys
}

// Len returns the number of transfers in flight.
func (s *Set) Len() int {
	return len(s.active)
}

// Stats returns the counters aggregated over every key.
func (s *Set) Stats() Stats {
	return s.stats
}
