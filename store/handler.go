package store

import (
	"context"

	"github.com/pithecene-io/sdlink/ingest"
	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// Handler persists every transfer outcome through a Client and records
// store write metrics per call.
type Handler struct {
	client    Client
	collector *metrics.Collector
}

// NewHandler creates an ingest handler backed by client.
func NewHandler(client Client, collector *metrics.Collector) *Handler {
	return &Handler{client: client, collector: collector}
}

// HandleTransfer implements ingest.Handler.
func (h *Handler) HandleTransfer(ctx context.Context, t *types.Transfer) error {
	return h.record(h.client.WriteTransfer(ctx, t))
}

// HandleFailure implements ingest.Handler.
func (h *Handler) HandleFailure(ctx context.Context, f *types.TransferFailure) error {
	return h.record(h.client.WriteFailure(ctx, f))
}

func (h *Handler) record(err error) error {
	if err != nil {
		h.collector.IncStoreWriteFailure()
	} else {
		h.collector.IncStoreWriteSuccess()
	}
	return err
}

// Verify Handler implements ingest.Handler.
var _ ingest.Handler = (*Handler)(nil)
