package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/types"
)

// Sidecar puts are retried on transient failures; the device cannot
// resend a completed file.
const (
	putAttempts   = 3
	putRetryDelay = 100 * time.Millisecond
)

// FileWriter writes sidecar files to the Lode store.
type FileWriter interface {
	// PutFile writes a file under the session's files/ prefix and returns
	// the store path. The filename must not contain path separators or "..".
	PutFile(ctx context.Context, filename string, data []byte) (string, error)
}

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys device/day/session_id/transfer_type.
type LodeClient struct {
	dataset      lode.Dataset
	config       Config
	storeFactory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, storeFactory: factory}
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteTransfer writes a completed transfer. Binary transfers are first
// written as a sidecar file; the record references it.
func (c *LodeClient) WriteTransfer(ctx context.Context, t *types.Transfer) error {
	var sidecar string
	if t.Binary {
		var err error
		sidecar, err = c.PutFile(ctx, sidecarName(t), t.Payload)
		if err != nil {
			return err
		}
	}
	return c.write(ctx, toTransferRecordMap(t, sidecar, c.config))
}

// WriteFailure writes a transfer_failure record.
func (c *LodeClient) WriteFailure(ctx context.Context, f *types.TransferFailure) error {
	return c.write(ctx, toFailureRecordMap(f, c.config))
}

// WriteMetrics writes the session metrics record.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return c.write(ctx, toMetricsRecordMap(snap, completedAt, c.config))
}

func (c *LodeClient) write(ctx context.Context, record map[string]any) error {
	_, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{})
	if err != nil {
		return WrapWriteError(err, c.config.Dataset)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// Verify LodeClient implements Client and FileWriter.
var (
	_ Client     = (*LodeClient)(nil)
	_ FileWriter = (*LodeClient)(nil)
)

// PutFile writes a sidecar file to the Lode store at the session's Hive path.
func (c *LodeClient) PutFile(ctx context.Context, filename string, data []byte) (string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid sidecar filename %q", filename)
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return "", WrapInitError(fmt.Errorf("file write store init failed: %w", err), c.config.Dataset)
	}

	p := c.buildFilePath(filename)
	for attempt := 1; ; attempt++ {
		err = WrapWriteError(store.Put(ctx, p, bytes.NewReader(data)), p)
		if err == nil {
			return p, nil
		}
		if attempt == putAttempts || !Retryable(err) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(time.Duration(attempt) * putRetryDelay):
		}
	}
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// buildFilePath computes the Hive-partitioned path for a sidecar file.
// Format: datasets/<dataset>/partitions/device=<d>/day=<d>/session_id=<s>/files/<filename>
func (c *LodeClient) buildFilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/device=%s/day=%s/session_id=%s/files/%s",
		c.config.Dataset,
		c.config.Device,
		c.config.Day,
		c.config.SessionID,
		filename,
	)
}

// sidecarName derives a flat, unique filename for a transfer's contents.
func sidecarName(t *types.Transfer) string {
	base := path.Base(t.Key.File)
	if base == "" || base == "." || base == "/" {
		base = "transfer.bin"
	}
	base = strings.NewReplacer("..", "_", `\`, "_").Replace(base)
	return fmt.Sprintf("%d-%s", t.CompletedAt.UnixNano(), base)
}
