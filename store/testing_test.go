package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sdlink/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This allows write and read datasets to share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func testConfig(sessionID string) Config {
	return Config{
		Dataset:   "sdlink",
		Device:    "esp32-s3",
		Day:       "2026-10-19",
		SessionID: sessionID,
	}
}

var testTime = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func textTransfer(kind, file, payload string) *types.Transfer {
	return &types.Transfer{
		Key:         types.TransferKey{Type: kind, File: file},
		Payload:     []byte(payload),
		Chunks:      2,
		StartedAt:   testTime,
		CompletedAt: testTime.Add(time.Second),
	}
}

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	// PutErrs are returned by successive Put calls before PutErr applies.
	PutErrs []error
	PutErr  error

	PutCalls int
	PutPaths []string
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutCalls++
	s.PutPaths = append(s.PutPaths, path)
	if len(s.PutErrs) > 0 {
		err := s.PutErrs[0]
		s.PutErrs = s.PutErrs[1:]
		return err
	}
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)
