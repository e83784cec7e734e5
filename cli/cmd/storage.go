package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/cli/config"
	"github.com/pithecene-io/sdlink/store"
)

// storageChoice holds resolved storage configuration.
type storageChoice struct {
	backend     string // "fs", "s3", "memory" or "" (disabled)
	path        string // fs: directory, s3: bucket/prefix
	dataset     string
	region      string
	endpoint    string
	s3PathStyle bool
}

func resolveStorage(c *cli.Context, cfg config.StorageConfig) storageChoice {
	return storageChoice{
		backend:     pick(c, "storage-backend", cfg.Backend),
		path:        pick(c, "storage-path", cfg.Path),
		dataset:     pick(c, "storage-dataset", cfg.Dataset),
		region:      pick(c, "storage-region", cfg.Region),
		endpoint:    pick(c, "storage-endpoint", cfg.Endpoint),
		s3PathStyle: c.Bool("storage-s3-path-style") || cfg.S3PathStyle,
	}
}

func (s storageChoice) enabled() bool {
	return s.backend != ""
}

// factory builds the Lode store factory for the chosen backend.
func (s storageChoice) factory(ctx context.Context) (lode.StoreFactory, error) {
	switch s.backend {
	case "fs":
		if s.path == "" {
			return nil, fmt.Errorf("--storage-path is required for the fs backend")
		}
		if err := os.MkdirAll(s.path, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		return lode.NewFSFactory(s.path), nil
	case "s3":
		bucket, prefix := store.ParseS3Path(s.path)
		return store.NewS3Factory(ctx, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.region,
			Endpoint:     s.endpoint,
			UsePathStyle: s.s3PathStyle,
		})
	case "memory":
		return lode.NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %q (must be fs, s3 or memory)", s.backend)
	}
}

// client opens a write client for one session.
func (s storageChoice) client(ctx context.Context, cfg store.Config) (*store.LodeClient, error) {
	factory, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewLodeClientWithFactory(cfg, factory)
}

// readDataset opens the dataset for history queries.
func (s storageChoice) readDataset(ctx context.Context) (lode.Dataset, error) {
	if s.backend == "" || s.backend == "memory" {
		return nil, fmt.Errorf("--storage-backend must be fs or s3 to read history")
	}
	factory, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewReadDataset(s.dataset, factory)
}
