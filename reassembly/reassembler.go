// Package reassembly rebuilds logical payloads from chunk envelopes.
//
// A Reassembler holds at most one in-flight transfer. Its state is either
// empty or accumulating a (type, total, fragments) triple; any chunk whose
// type or total disagrees with the accumulating transfer replaces it.
// Nothing here blocks, allocates goroutines or performs I/O.
package reassembly

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/sdlink/types"
)

// ErrMalformedEnvelope is returned for envelopes that violate the chunk
// model (empty type, non-positive total, sequence outside 1..total).
// A rejected envelope never touches the buffer.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Validate checks an envelope against the chunk model.
func Validate(env *types.ChunkEnvelope) error {
	if env == nil {
		return fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}
	if env.Type == "" {
		return fmt.Errorf("%w: empty type", ErrMalformedEnvelope)
	}
	if env.Total < 1 {
		return fmt.Errorf("%w: total %d must be positive", ErrMalformedEnvelope, env.Total)
	}
	if env.Seq < 1 || env.Seq > env.Total {
		return fmt.Errorf("%w: seq %d outside 1..%d", ErrMalformedEnvelope, env.Seq, env.Total)
	}
	return nil
}

// Assembled is a completed transfer returned by AddChunk.
type Assembled struct {
	Type string
	// Total is the declared chunk count of the transfer.
	Total int
	// Payload is the concatenation of all fragments in ascending sequence order.
	Payload []byte
	// Duplicates counts chunks that overwrote an already stored sequence.
	Duplicates int
}

// Progress is a read-only view of the in-flight transfer.
type Progress struct {
	Type         string
	Total        int
	Received     int
	TerminalSeen bool
	Duplicates   int
}

// Stats holds cumulative reassembler counters.
type Stats struct {
	// Accepted counts envelopes that passed validation.
	Accepted int64
	// Rejected counts malformed envelopes.
	Rejected int64
	// Duplicates counts overwrites of an already stored sequence.
	Duplicates int64
	// Superseded counts in-flight transfers discarded by a resync.
	Superseded int64
	// Discarded counts in-flight transfers dropped through Reset.
	Discarded int64
	// Completed counts transfers returned to the caller.
	Completed int64
}

// transfer is the accumulating state. A nil *transfer is the empty state.
type transfer struct {
	typ          string
	total        int
	fragments    map[int][]byte
	terminalSeen bool
	duplicates   int
}

func newTransfer(env *types.ChunkEnvelope) *transfer {
	return &transfer{
		typ:       env.Type,
		total:     env.Total,
		fragments: make(map[int][]byte, env.Total),
	}
}

// accepts reports whether env belongs to this transfer.
func (t *transfer) accepts(env *types.ChunkEnvelope) bool {
	return t != nil && t.typ == env.Type && t.total == env.Total
}

// complete reports whether every sequence in 1..total is stored.
// Keys are validated on the way in, so the count is sufficient.
func (t *transfer) complete() bool {
	return len(t.fragments) == t.total
}

func (t *transfer) assemble() []byte {
	size := 0
	for _, frag := range t.fragments {
		size += len(frag)
	}
	out := make([]byte, 0, size)
	for seq := 1; seq <= t.total; seq++ {
		out = append(out, t.fragments[seq]...)
	}
	return out
}

// Reassembler accumulates the chunks of one transfer at a time.
// It is not safe for concurrent use; drive it from a single delivery stream.
type Reassembler struct {
	current *transfer
	stats   *Stats
}

// New creates an empty reassembler.
func New() *Reassembler {
	return &Reassembler{stats: &Stats{}}
}

// newWithStats creates a reassembler that records into shared counters.
func newWithStats(stats *Stats) *Reassembler {
	return &Reassembler{stats: stats}
}

// AddChunk adds one envelope and returns the assembled transfer once every
// chunk of it is present and a terminal chunk has been seen. It returns
// nil while the transfer is still open.
//
// A chunk whose type or total differs from the in-flight transfer discards
// that transfer and starts a new one. A chunk repeating a stored sequence
// replaces the stored fragment. A terminal chunk arriving ahead of missing
// fragments leaves the transfer open; the chunk that fills the last gap
// then completes it.
//
// The only error is ErrMalformedEnvelope.
func (r *Reassembler) AddChunk(env *types.ChunkEnvelope) (*Assembled, error) {
	if err := Validate(env); err != nil {
		r.stats.Rejected++
		return nil, err
	}
	r.stats.Accepted++

	if !r.current.accepts(env) {
		if r.current != nil {
			r.stats.Superseded++
		}
		r.current = newTransfer(env)
	}
	t := r.current

	if _, dup := t.fragments[env.Seq]; dup {
		t.duplicates++
		r.stats.Duplicates++
	}
	// Copy so callers may reuse their decode buffers.
	t.fragments[env.Seq] = append([]byte(nil), env.Payload...)

	if env.IsTerminal() {
		t.terminalSeen = true
	}
	if !t.terminalSeen || !t.complete() {
		return nil, nil
	}

	r.current = nil
	r.stats.Completed++
	return &Assembled{
		Type:       t.typ,
		Total:      t.total,
		Payload:    t.assemble(),
		Duplicates: t.duplicates,
	}, nil
}

// Reset discards the in-flight transfer, if any.
// Returns true if a transfer was discarded.
func (r *Reassembler) Reset() bool {
	if r.current == nil {
		return false
	}
	r.current = nil
	r.stats.Discarded++
	return true
}

// Progress returns a view of the in-flight transfer.
// The second return value is false when the reassembler is empty.
func (r *Reassembler) Progress() (Progress, bool) {
	t := r.current
	if t == nil {
		return Progress{}, false
	}
	return Progress{
		Type:         t.typ,
		Total:        t.total,
		Received:     len(t.fragments),
		TerminalSeen: t.terminalSeen,
		Duplicates:   t.duplicates,
	}, true
}

// Stats returns a copy of the cumulative counters.
func (r *Reassembler) Stats() Stats {
	return *r.stats
}
