// Package store persists receive sessions to a Lode dataset.
//
// Records are JSONL, Hive-partitioned by device/day/session_id/transfer_type.
// Binary file contents are written as sidecar objects next to the
// partitions rather than inline.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "sdlink"

// partitionKeys is the Hive layout shared by the read and write paths.
var partitionKeys = []string{"device", "day", "session_id", "transfer_type"}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition values for one session.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Device is the partition key for the sending device.
	Device string
	// Day is derived from the session start time (YYYY-MM-DD UTC).
	Day string
	// SessionID is the partition key for the receive session.
	SessionID string
}

// Client abstracts session persistence.
type Client interface {
	// WriteTransfer persists a completed transfer.
	WriteTransfer(ctx context.Context, t *types.Transfer) error
	// WriteFailure persists a device-reported transfer failure.
	WriteFailure(ctx context.Context, f *types.TransferFailure) error
	// WriteMetrics persists the session metrics snapshot.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
	// Close releases client resources.
	Close() error
}

// StubClient records writes without persisting. Safe for concurrent use.
type StubClient struct {
	mu        sync.Mutex
	Transfers []*types.Transfer
	Failures  []*types.TransferFailure
	Metrics   []metrics.Snapshot
	Closed    bool
	// Err, if set, is returned from every write.
	Err error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteTransfer implements Client.
func (c *StubClient) WriteTransfer(_ context.Context, t *types.Transfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Transfers = append(c.Transfers, t)
	return nil
}

// WriteFailure implements Client.
func (c *StubClient) WriteFailure(_ context.Context, f *types.TransferFailure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Failures = append(c.Failures, f)
	return nil
}

// WriteMetrics implements Client.
func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Metrics = append(c.Metrics, snap)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
