// Package config loads sdlink.yaml.
//
// Every value is optional and acts as a default for the matching
// receive flag. CLI flags always override config values.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pithecene-io/sdlink/wire"
)

// Config represents an sdlink.yaml file.
type Config struct {
	Device     string        `yaml:"device"`
	Input      string        `yaml:"input"`
	Encoding   string        `yaml:"encoding"`
	Demux      bool          `yaml:"demux"`
	StaleAfter Duration      `yaml:"stale_after"`
	MaxChunk   int           `yaml:"max_chunk"`
	LogLevel   string        `yaml:"log_level"`
	Storage    StorageConfig `yaml:"storage"`
	Adapter    AdapterConfig `yaml:"adapter"`
	Output     OutputConfig  `yaml:"output"`
}

// StorageConfig holds storage defaults.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"` // fs, s3, memory
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults.
type AdapterConfig struct {
	Type          string            `yaml:"type"` // webhook, redis
	URL           string            `yaml:"url"`
	Channel       string            `yaml:"channel,omitempty"`
	FailedChannel string            `yaml:"failed_channel,omitempty"`
	HistoryKey    string            `yaml:"history_key,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	Secret        string            `yaml:"secret,omitempty"` // webhook body signing
	Timeout       Duration          `yaml:"timeout,omitempty"`
	Retries       *int              `yaml:"retries,omitempty"`
	QueueSize     int               `yaml:"queue_size,omitempty"`
}

// OutputConfig controls where received files land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Storage backends.
var storageBackends = []string{"fs", "s3", "memory"}

// Adapter types.
var adapterTypes = []string{"webhook", "redis"}

// Validate checks enumerated values and cross-field requirements.
// Empty values are valid; they mean "not configured".
func (c *Config) Validate() error {
	var errs []error

	if c.Encoding != "" && !slices.Contains(wire.Encodings, c.Encoding) {
		errs = append(errs, fmt.Errorf("encoding: unknown value %q (want one of %v)", c.Encoding, wire.Encodings))
	}
	if c.MaxChunk < 0 {
		errs = append(errs, fmt.Errorf("max_chunk: must be >= 0, got %d", c.MaxChunk))
	}
	if c.StaleAfter.Duration < 0 {
		errs = append(errs, fmt.Errorf("stale_after: must be >= 0, got %s", c.StaleAfter.Duration))
	}
	if b := c.Storage.Backend; b != "" && !slices.Contains(storageBackends, b) {
		errs = append(errs, fmt.Errorf("storage.backend: unknown value %q (want one of %v)", b, storageBackends))
	}
	if c.Storage.Backend == "s3" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path: required for s3 backend (bucket/prefix)"))
	}
	if t := c.Adapter.Type; t != "" {
		if !slices.Contains(adapterTypes, t) {
			errs = append(errs, fmt.Errorf("adapter.type: unknown value %q (want one of %v)", t, adapterTypes))
		}
		if c.Adapter.URL == "" {
			errs = append(errs, errors.New("adapter.url: required when adapter.type is set"))
		}
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries: must be >= 0, got %d", *c.Adapter.Retries))
	}
	if c.Adapter.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("adapter.queue_size: must be >= 0, got %d", c.Adapter.QueueSize))
	}

	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
