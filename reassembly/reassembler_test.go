package reassembly

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pithecene-io/sdlink/types"
)

func chunk(typ string, seq, total int, payload string) *types.ChunkEnvelope {
	return &types.ChunkEnvelope{
		Type:    typ,
		Seq:     seq,
		Total:   total,
		Payload: []byte(payload),
		IsFinal: seq == total,
	}
}

// fileListChunks is the four-chunk transfer used across tests.
func fileListChunks() []*types.ChunkEnvelope {
	return []*types.ChunkEnvelope{
		chunk(types.KindFileList, 1, 4, "abc"),
		chunk(types.KindFileList, 2, 4, "def"),
		chunk(types.KindFileList, 3, 4, "ghi"),
		chunk(types.KindFileList, 4, 4, "jkl"),
	}
}

func mustAdd(t *testing.T, r *Reassembler, env *types.ChunkEnvelope) *Assembled {
	t.Helper()
	got, err := r.AddChunk(env)
	if err != nil {
		t.Fatalf("AddChunk(seq=%d) unexpected error: %v", env.Seq, err)
	}
	return got
}

func TestReassembler_InOrder(t *testing.T) {
	r := New()
	chunks := fileListChunks()

	for _, c := range chunks[:3] {
		if got := mustAdd(t, r, c); got != nil {
			t.Fatalf("seq %d: expected no payload, got %q", c.Seq, got.Payload)
		}
	}

	got := mustAdd(t, r, chunks[3])
	if got == nil {
		t.Fatal("expected payload on final chunk")
	}
	if string(got.Payload) != "abcdefghijkl" {
		t.Errorf("payload = %q, want %q", got.Payload, "abcdefghijkl")
	}
	if got.Type != types.KindFileList || got.Total != 4 {
		t.Errorf("assembled = %+v, want FILE_LIST/4", got)
	}
}

func TestReassembler_LiteralScenario(t *testing.T) {
	r := New()
	chunks := fileListChunks()

	// Delivery order 2, 4, 1, 3. The final chunk arrives while 1 and 3 are
	// missing, so nothing completes until the last gap is filled.
	for _, idx := range []int{1, 3, 0} {
		if got := mustAdd(t, r, chunks[idx]); got != nil {
			t.Fatalf("seq %d: premature payload %q", chunks[idx].Seq, got.Payload)
		}
	}

	p, ok := r.Progress()
	if !ok {
		t.Fatal("expected transfer in flight")
	}
	if !p.TerminalSeen || p.Received != 3 {
		t.Errorf("progress = %+v, want terminal seen with 3 received", p)
	}

	got := mustAdd(t, r, chunks[2])
	if got == nil {
		t.Fatal("expected payload once seq 3 fills the gap")
	}
	if string(got.Payload) != "abcdefghijkl" {
		t.Errorf("payload = %q, want %q", got.Payload, "abcdefghijkl")
	}
}

func TestReassembler_FinalLastAfterShuffle(t *testing.T) {
	r := New()
	chunks := fileListChunks()

	for _, idx := range []int{1, 0, 2} {
		if got := mustAdd(t, r, chunks[idx]); got != nil {
			t.Fatalf("seq %d: premature payload", chunks[idx].Seq)
		}
	}
	got := mustAdd(t, r, chunks[3])
	if got == nil || string(got.Payload) != "abcdefghijkl" {
		t.Fatalf("expected abcdefghijkl on final chunk, got %v", got)
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestReassembler_OrderIndependence_AllPermutations(t *testing.T) {
	chunks := fileListChunks()

	for _, order := range permutations(len(chunks)) {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			r := New()
			var completions int
			var payload []byte
			for i, idx := range order {
				got := mustAdd(t, r, chunks[idx])
				if got == nil {
					continue
				}
				completions++
				payload = got.Payload
				if i != len(order)-1 {
					t.Fatalf("completed after %d of %d chunks", i+1, len(order))
				}
			}
			if completions != 1 {
				t.Fatalf("completions = %d, want 1", completions)
			}
			if string(payload) != "abcdefghijkl" {
				t.Errorf("payload = %q", payload)
			}
		})
	}
}

func TestReassembler_OrderIndependence_Random(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := range 50 {
		total := 1 + rng.Intn(40)
		var want bytes.Buffer
		chunks := make([]*types.ChunkEnvelope, total)
		for i := range total {
			frag := make([]byte, rng.Intn(16))
			rng.Read(frag)
			want.Write(frag)
			chunks[i] = &types.ChunkEnvelope{
				Type:    types.KindFileList,
				Seq:     i + 1,
				Total:   total,
				Payload: frag,
				IsFinal: i+1 == total,
			}
		}
		rng.Shuffle(total, func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

		r := New()
		var got *Assembled
		for i, c := range chunks {
			a := mustAdd(t, r, c)
			if a != nil && i != total-1 {
				t.Fatalf("trial %d: completed early at %d/%d", trial, i+1, total)
			}
			got = a
		}
		if got == nil {
			t.Fatalf("trial %d: never completed", trial)
		}
		if !bytes.Equal(got.Payload, want.Bytes()) {
			t.Fatalf("trial %d: payload mismatch", trial)
		}
	}
}

func TestReassembler_IdempotentOverwrite(t *testing.T) {
	r := New()
	chunks := fileListChunks()

	mustAdd(t, r, chunks[0])
	mustAdd(t, r, chunk(types.KindFileList, 2, 4, "XXX"))
	mustAdd(t, r, chunks[1]) // second delivery of seq 2 wins
	mustAdd(t, r, chunks[2])

	got := mustAdd(t, r, chunks[3])
	if got == nil {
		t.Fatal("expected payload")
	}
	if string(got.Payload) != "abcdefghijkl" {
		t.Errorf("payload = %q, want latest fragment for seq 2", got.Payload)
	}
	if got.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", got.Duplicates)
	}

	r2 := New()
	mustAdd(t, r2, chunks[0])
	mustAdd(t, r2, chunks[1])
	mustAdd(t, r2, chunk(types.KindFileList, 2, 4, "XXX"))
	mustAdd(t, r2, chunks[2])
	got = mustAdd(t, r2, chunks[3])
	if got == nil || string(got.Payload) != "abcXXXghijkl" {
		t.Errorf("payload = %v, want abcXXXghijkl", got)
	}
}

func TestReassembler_NoPrematureCompletion(t *testing.T) {
	r := New()
	chunks := fileListChunks()

	mustAdd(t, r, chunks[0])
	mustAdd(t, r, chunks[2])
	if got := mustAdd(t, r, chunks[3]); got != nil {
		t.Fatalf("final chunk with seq 2 missing returned %q", got.Payload)
	}
	// Repeating the final chunk must not complete either.
	if got := mustAdd(t, r, chunks[3]); got != nil {
		t.Fatalf("repeated final chunk returned %q", got.Payload)
	}

	got := mustAdd(t, r, chunks[1])
	if got == nil {
		t.Fatal("expected payload once the missing chunk arrives")
	}
	if string(got.Payload) != "abcdefghijkl" {
		t.Errorf("payload = %q", got.Payload)
	}
}

func TestReassembler_ResyncOnTypeChange(t *testing.T) {
	r := New()
	mustAdd(t, r, chunk("A", 1, 3, "a1"))
	mustAdd(t, r, chunk("A", 2, 3, "a2"))

	mustAdd(t, r, chunk("B", 2, 2, "b2"))
	got := mustAdd(t, r, chunk("B", 1, 2, "b1"))
	if got == nil {
		t.Fatal("expected B to complete")
	}
	if string(got.Payload) != "b1b2" {
		t.Errorf("payload = %q, want b1b2", got.Payload)
	}

	// A's final chunk now starts a fresh A transfer that cannot complete.
	if got := mustAdd(t, r, chunk("A", 3, 3, "a3")); got != nil {
		t.Errorf("stale A fragments leaked into new transfer: %q", got.Payload)
	}

	if s := r.Stats(); s.Superseded != 1 {
		t.Errorf("superseded = %d, want 1", s.Superseded)
	}
}

func TestReassembler_ResyncOnTotalChange(t *testing.T) {
	r := New()
	mustAdd(t, r, chunk(types.KindFileList, 1, 4, "old1"))
	mustAdd(t, r, chunk(types.KindFileList, 2, 4, "old2"))

	mustAdd(t, r, chunk(types.KindFileList, 1, 2, "new1"))
	got := mustAdd(t, r, chunk(types.KindFileList, 2, 2, "new2"))
	if got == nil {
		t.Fatal("expected new transfer to complete")
	}
	if string(got.Payload) != "new1new2" {
		t.Errorf("payload = %q, want new1new2", got.Payload)
	}
}

func TestReassembler_ResetAfterCompletion(t *testing.T) {
	r := New()
	for _, c := range fileListChunks() {
		mustAdd(t, r, c)
	}
	if _, ok := r.Progress(); ok {
		t.Fatal("buffer should be empty after completion")
	}

	// Identical type and total: must not see the previous fragments.
	mustAdd(t, r, chunk(types.KindFileList, 1, 4, "1"))
	mustAdd(t, r, chunk(types.KindFileList, 2, 4, "2"))
	mustAdd(t, r, chunk(types.KindFileList, 3, 4, "3"))
	if got := mustAdd(t, r, chunk(types.KindFileList, 4, 4, "4")); got == nil || string(got.Payload) != "1234" {
		t.Fatalf("second transfer = %v, want 1234", got)
	}

	// A different shape afterwards.
	if got := mustAdd(t, r, chunk(types.KindFileData, 1, 1, "solo")); got == nil || string(got.Payload) != "solo" {
		t.Fatalf("third transfer = %v, want solo", got)
	}

	if s := r.Stats(); s.Completed != 3 || s.Superseded != 0 {
		t.Errorf("stats = %+v, want 3 completed, 0 superseded", s)
	}
}

func TestReassembler_TerminalMarkerBeforeLastSequence(t *testing.T) {
	r := New()

	// Final marker on seq 2 of 3: completion is attempted but the transfer
	// still needs every sequence in 1..3.
	mustAdd(t, r, chunk(types.KindFileList, 1, 3, "a"))
	early := &types.ChunkEnvelope{Type: types.KindFileList, Seq: 2, Total: 3, Payload: []byte("b"), IsFinal: true}
	if got := mustAdd(t, r, early); got != nil {
		t.Fatalf("completed without seq 3: %q", got.Payload)
	}

	got := mustAdd(t, r, &types.ChunkEnvelope{Type: types.KindFileList, Seq: 3, Total: 3, Payload: []byte("c")})
	if got == nil || string(got.Payload) != "abc" {
		t.Fatalf("got %v, want abc", got)
	}
}

func TestReassembler_SequenceEqualsTotalWithoutFlag(t *testing.T) {
	r := New()
	mustAdd(t, r, &types.ChunkEnvelope{Type: "X", Seq: 1, Total: 2, Payload: []byte("a")})
	got := mustAdd(t, r, &types.ChunkEnvelope{Type: "X", Seq: 2, Total: 2, Payload: []byte("b")})
	if got == nil || string(got.Payload) != "ab" {
		t.Fatalf("got %v, want ab", got)
	}
}

func TestReassembler_MalformedLeavesBufferUntouched(t *testing.T) {
	tests := []struct {
		name string
		env  *types.ChunkEnvelope
	}{
		{"nil", nil},
		{"empty type", &types.ChunkEnvelope{Seq: 1, Total: 4}},
		{"zero total", &types.ChunkEnvelope{Type: types.KindFileList, Seq: 1, Total: 0}},
		{"negative total", &types.ChunkEnvelope{Type: types.KindFileList, Seq: 1, Total: -2}},
		{"zero seq", &types.ChunkEnvelope{Type: types.KindFileList, Seq: 0, Total: 4}},
		{"seq beyond total", &types.ChunkEnvelope{Type: types.KindFileList, Seq: 5, Total: 4, IsFinal: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			chunks := fileListChunks()
			mustAdd(t, r, chunks[0])
			mustAdd(t, r, chunks[1])

			got, err := r.AddChunk(tt.env)
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("err = %v, want ErrMalformedEnvelope", err)
			}
			if got != nil {
				t.Fatal("malformed envelope produced a payload")
			}

			p, ok := r.Progress()
			if !ok || p.Received != 2 || p.Total != 4 {
				t.Fatalf("progress = %+v, want 2/4 intact", p)
			}

			mustAdd(t, r, chunks[2])
			if a := mustAdd(t, r, chunks[3]); a == nil || string(a.Payload) != "abcdefghijkl" {
				t.Fatalf("transfer corrupted by malformed envelope: %v", a)
			}
			if s := r.Stats(); s.Rejected != 1 {
				t.Errorf("rejected = %d, want 1", s.Rejected)
			}
		})
	}
}

func TestReassembler_CopiesPayload(t *testing.T) {
	r := New()
	buf := []byte("abc")
	mustAdd(t, r, &types.ChunkEnvelope{Type: "X", Seq: 1, Total: 2, Payload: buf})
	copy(buf, "zzz")

	got := mustAdd(t, r, &types.ChunkEnvelope{Type: "X", Seq: 2, Total: 2, Payload: []byte("def"), IsFinal: true})
	if got == nil || string(got.Payload) != "abcdef" {
		t.Fatalf("got %v, want abcdef", got)
	}
}

func TestReassembler_Reset(t *testing.T) {
	r := New()
	if r.Reset() {
		t.Error("Reset on empty reassembler reported a discard")
	}

	mustAdd(t, r, chunk(types.KindFileList, 1, 2, "a"))
	if !r.Reset() {
		t.Fatal("Reset did not report the discarded transfer")
	}
	if got := mustAdd(t, r, chunk(types.KindFileList, 2, 2, "b")); got != nil {
		t.Fatalf("discarded fragment leaked: %q", got.Payload)
	}
	if s := r.Stats(); s.Discarded != 1 {
		t.Errorf("discarded = %d, want 1", s.Discarded)
	}
}
