package adapter

import (
	"context"
	"sync"

	"github.com/pithecene-io/sdlink/ingest"
	"github.com/pithecene-io/sdlink/log"
	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// DefaultQueueSize bounds the events waiting for the publisher.
const DefaultQueueSize = 64

// Handler publishes transfer outcomes through an Adapter. Events are queued
// and published from one goroutine so a slow or unreachable downstream never
// stalls reading the serial stream. Publish failures and events dropped on a
// full queue are counted and logged, never returned.
//
// Call Drain once the session ends.
type Handler struct {
	adapter   Adapter
	session   types.SessionMeta
	logger    *log.Logger
	collector *metrics.Collector

	mu     sync.Mutex // guards closed and sends on queue
	closed bool
	queue  chan *TransferCompletedEvent
	done   chan struct{}

	// ctx bounds in-flight publishes; Drain cancels it on timeout.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandler creates an ingest handler that publishes via a, queueing up
// to queueSize events (DefaultQueueSize when not positive).
// A nil logger discards output.
func NewHandler(a Adapter, session types.SessionMeta, queueSize int, logger *log.Logger, collector *metrics.Collector) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		adapter:   a,
		session:   session,
		logger:    logger,
		collector: collector,
		queue:     make(chan *TransferCompletedEvent, queueSize),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go h.run()
	return h
}

// HandleTransfer implements ingest.Handler.
func (h *Handler) HandleTransfer(_ context.Context, t *types.Transfer) error {
	h.enqueue(NewCompletedEvent(h.session, t))
	return nil
}

// HandleFailure implements ingest.Handler.
func (h *Handler) HandleFailure(_ context.Context, f *types.TransferFailure) error {
	h.enqueue(NewFailedEvent(h.session, f))
	return nil
}

// Drain stops accepting events and waits until the queue is published.
// When ctx ends first, the publish in flight is canceled, whatever is still
// queued is counted as failed, and ctx's error is returned.
func (h *Handler) Drain(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		h.cancel()
		return nil
	case <-ctx.Done():
		h.cancel()
		<-h.done
		return ctx.Err()
	}
}

func (h *Handler) enqueue(event *TransferCompletedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		select {
		case h.queue <- event:
			return
		default:
		}
	}
	h.collector.IncAdapterPublishFailure()
	h.logger.Warn("adapter event dropped", map[string]any{
		"event_type":    event.EventType,
		"transfer_type": event.TransferType,
		"file":          event.File,
		"closed":        h.closed,
	})
}

func (h *Handler) run() {
	defer close(h.done)
	for event := range h.queue {
		h.publish(event)
	}
}

func (h *Handler) publish(event *TransferCompletedEvent) {
	if err := h.adapter.Publish(h.ctx, event); err != nil {
		h.collector.IncAdapterPublishFailure()
		h.logger.Warn("adapter publish failed", map[string]any{
			"event_type":    event.EventType,
			"transfer_type": event.TransferType,
			"file":          event.File,
			"error":         err.Error(),
		})
		return
	}
	h.collector.IncAdapterPublishSuccess()
}

// Verify Handler implements ingest.Handler.
var _ ingest.Handler = (*Handler)(nil)
