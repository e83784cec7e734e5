// Package ingest drives chunk reassembly from a wire source.
//
// The engine owns everything the reassembler deliberately does not: reading
// the transport, skipping undecodable input, idle expiry and dispatching
// completed transfers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pithecene-io/sdlink/log"
	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/reassembly"
	"github.com/pithecene-io/sdlink/types"
	"github.com/pithecene-io/sdlink/wire"
)

// Config controls engine behavior.
type Config struct {
	// Demux keeps one transfer in flight per key instead of one overall.
	// Without it a chunk of another transfer supersedes the current one.
	Demux bool
	// StaleAfter discards a transfer that has seen no chunk for this long.
	// Zero disables expiry.
	StaleAfter time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// chunkAdder is satisfied by both reassembly.Reassembler and reassembly.Set.
type chunkAdder interface {
	AddChunk(env *types.ChunkEnvelope) (*reassembly.Assembled, error)
	Stats() reassembly.Stats
}

// openTransfer tracks timing for an in-flight transfer.
type openTransfer struct {
	started  time.Time
	lastSeen time.Time
}

// Engine reads envelopes from a source until EOF and hands completed
// transfers to a Handler. It is not safe for concurrent use.
type Engine struct {
	source    wire.Source
	handler   Handler
	logger    *log.Logger
	collector *metrics.Collector
	cfg       Config

	single *reassembly.Reassembler
	set    *reassembly.Set
	adder  chunkAdder

	open    map[types.TransferKey]*openTransfer
	current types.TransferKey // in-flight key without Demux
	seen    reassembly.Stats  // counters already forwarded to collector
}

// NewEngine creates an engine. logger and collector may be nil.
func NewEngine(source wire.Source, handler Handler, cfg Config, logger *log.Logger, collector *metrics.Collector) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = log.Nop()
	}

	e := &Engine{
		source:    source,
		handler:   handler,
		logger:    logger,
		collector: collector,
		cfg:       cfg,
		open:      make(map[types.TransferKey]*openTransfer),
	}
	if cfg.Demux {
		e.set = reassembly.NewSet()
		e.adder = e.set
	} else {
		e.single = reassembly.New()
		e.adder = e.single
	}
	return e
}

// Run runs the ingestion loop until EOF or a fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF)
//   - *IngestError with Kind=IngestErrorStream: source error
//   - *IngestError with Kind=IngestErrorHandler: handler error
//   - *IngestError with Kind=IngestErrorCanceled: context canceled
//
// Undecodable envelopes and malformed chunks are logged, counted and skipped.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &IngestError{Kind: IngestErrorCanceled, Err: ctx.Err()}
		default:
		}

		env, err := e.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				e.reportIncomplete()
				return nil
			}
			if wire.IsDecodeError(err) {
				e.collector.IncDecodeError()
				e.logger.Warn("envelope decode error", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			e.logger.Error("source error", map[string]any{
				"error": err.Error(),
			})
			return &IngestError{Kind: IngestErrorStream, Err: fmt.Errorf("source error: %w", err)}
		}

		e.collector.IncEnvelopeReceived()
		if err := e.Process(ctx, env); err != nil {
			return err
		}
	}
}

// Process handles a single decoded envelope. Run calls it for every
// envelope; it is exported for transports that push envelopes instead of
// being read from.
func (e *Engine) Process(ctx context.Context, env *types.ChunkEnvelope) error {
	now := e.cfg.Now()
	e.expireStale(now)

	if env != nil && env.IsError() {
		return e.processFailure(ctx, env, now)
	}

	// Only a valid chunk may move the single-transfer cursor; a rejected
	// one must leave the buffer as it was.
	if !e.cfg.Demux && reassembly.Validate(env) == nil {
		e.switchKey(env.Key())
	}

	done, err := e.adder.AddChunk(env)
	delta := e.forwardStats()
	if err != nil {
		e.logger.Warn("malformed envelope rejected", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	key := env.Key()
	tr, ok := e.open[key]
	if !ok || delta.Superseded > 0 {
		// A resync under the same key restarts the transfer clock.
		if ok {
			e.logger.Warn("transfer superseded by resync", map[string]any{
				"transfer": key.String(),
				"total":    env.Total,
			})
		}
		tr = &openTransfer{started: now}
		e.open[key] = tr
	}
	tr.lastSeen = now

	if done == nil {
		e.logProgress(key)
		return nil
	}

	delete(e.open, key)
	transfer := &types.Transfer{
		Key:         key,
		Payload:     done.Payload,
		Chunks:      done.Total,
		Duplicates:  done.Duplicates,
		Binary:      env.Binary,
		StartedAt:   tr.started,
		CompletedAt: now,
	}
	e.collector.IncTransferCompleted(key.Type, len(done.Payload))
	e.logger.Info("transfer completed", map[string]any{
		"transfer":   key.String(),
		"chunks":     done.Total,
		"bytes":      len(done.Payload),
		"duplicates": done.Duplicates,
		"duration":   transfer.Duration().String(),
	})

	if err := e.handler.HandleTransfer(ctx, transfer); err != nil {
		return &IngestError{
			Kind: IngestErrorHandler,
			Err:  fmt.Errorf("handle transfer %s: %w", key, err),
		}
	}
	return nil
}

// switchKey discards the in-flight transfer when a chunk for another file
// of the same kind arrives. Kind and total changes are handled by the
// reassembler itself.
func (e *Engine) switchKey(key types.TransferKey) {
	if e.current == key {
		return
	}
	if e.current.Type == key.Type && e.current.File != key.File {
		if e.single.Reset() {
			e.collector.IncTransferSuperseded()
			e.logger.Warn("transfer superseded by another file", map[string]any{
				"transfer": e.current.String(),
				"next":     key.String(),
			})
		}
	}
	delete(e.open, e.current)
	e.current = key
}

func (e *Engine) processFailure(ctx context.Context, env *types.ChunkEnvelope, now time.Time) error {
	key := env.Key()
	e.discard(key)
	e.collector.IncTransferFailed()
	e.logger.Warn("device reported transfer failure", map[string]any{
		"transfer": key.String(),
		"error":    env.Err,
	})

	failure := &types.TransferFailure{Key: key, Message: env.Err, At: now}
	if err := e.handler.HandleFailure(ctx, failure); err != nil {
		return &IngestError{
			Kind: IngestErrorHandler,
			Err:  fmt.Errorf("handle failure %s: %w", key, err),
		}
	}
	return nil
}

// discard drops any buffered fragments for key.
func (e *Engine) discard(key types.TransferKey) bool {
	delete(e.open, key)
	if e.cfg.Demux {
		return e.set.Expire(key)
	}
	if e.current == key {
		return e.single.Reset()
	}
	return false
}

// Sweep expires idle transfers without waiting for the next chunk.
// Returns the number of transfers expired.
func (e *Engine) Sweep() int {
	return e.expireStale(e.cfg.Now())
}

func (e *Engine) expireStale(now time.Time) int {
	if e.cfg.StaleAfter <= 0 {
		return 0
	}

	expired := 0
	for _, key := range e.Pending() {
		tr := e.open[key]
		idle := now.Sub(tr.lastSeen)
		if idle <= e.cfg.StaleAfter {
			continue
		}
		if e.discard(key) {
			expired++
			e.collector.IncTransferExpired()
			e.logger.Warn("transfer expired", map[string]any{
				"transfer": key.String(),
				"idle":     idle.String(),
			})
		}
	}
	return expired
}

// Pending returns the keys of transfers still in flight, sorted.
func (e *Engine) Pending() []types.TransferKey {
	keys := make([]types.TransferKey, 0, len(e.open))
	for k := range e.open {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Stats returns the cumulative reassembly counters.
func (e *Engine) Stats() reassembly.Stats {
	return e.adder.Stats()
}

func (e *Engine) logProgress(key types.TransferKey) {
	var (
		p  reassembly.Progress
		ok bool
	)
	if e.cfg.Demux {
		p, ok = e.set.Progress(key)
	} else {
		p, ok = e.single.Progress()
	}
	if !ok {
		return
	}
	e.logger.Debug("chunk accepted", map[string]any{
		"transfer":      key.String(),
		"received":      p.Received,
		"total":         p.Total,
		"terminal_seen": p.TerminalSeen,
	})
}

func (e *Engine) reportIncomplete() {
	for _, key := range e.Pending() {
		e.logger.Warn("stream ended with incomplete transfer", map[string]any{
			"transfer": key.String(),
		})
	}
}

// forwardStats sends the reassembly counters gained since the last call to
// the collector and returns that delta. Reset discards are not forwarded:
// the engine counts them as superseded or expired where it resets.
func (e *Engine) forwardStats() reassembly.Stats {
	s := e.adder.Stats()
	d := reassembly.Stats{
		Rejected:   s.Rejected - e.seen.Rejected,
		Duplicates: s.Duplicates - e.seen.Duplicates,
		Superseded: s.Superseded - e.seen.Superseded,
	}
	e.seen = s
	e.collector.AddReassemblyStats(d.Rejected, d.Duplicates, d.Superseded)
	return d
}
