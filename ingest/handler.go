package ingest

import (
	"context"

	"github.com/pithecene-io/sdlink/types"
)

// Handler receives the outcome of every transfer.
type Handler interface {
	// HandleTransfer is called once per completed transfer.
	HandleTransfer(ctx context.Context, t *types.Transfer) error
	// HandleFailure is called when the device reports an error for a transfer.
	HandleFailure(ctx context.Context, f *types.TransferFailure) error
}

// HandlerFunc adapts a function to a Handler that ignores failures.
type HandlerFunc func(ctx context.Context, t *types.Transfer) error

// HandleTransfer implements Handler.
func (f HandlerFunc) HandleTransfer(ctx context.Context, t *types.Transfer) error {
	return f(ctx, t)
}

// HandleFailure implements Handler.
func (f HandlerFunc) HandleFailure(context.Context, *types.TransferFailure) error {
	return nil
}

// MultiHandler calls each handler in order and stops at the first error.
type MultiHandler []Handler

// HandleTransfer implements Handler.
func (m MultiHandler) HandleTransfer(ctx context.Context, t *types.Transfer) error {
	for _, h := range m {
		if err := h.HandleTransfer(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// HandleFailure implements Handler.
func (m MultiHandler) HandleFailure(ctx context.Context, f *types.TransferFailure) error {
	for _, h := range m {
		if err := h.HandleFailure(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Handler = HandlerFunc(nil)
	_ Handler = MultiHandler(nil)
)
