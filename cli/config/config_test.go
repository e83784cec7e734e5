package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("SDLINK_HOOK_TOKEN", "token123")

	yaml := `device: bench-esp32
input: /dev/ttyUSB0
encoding: jsonl
demux: true
stale_after: 30s
max_chunk: 400
log_level: debug

storage:
  dataset: sdlink
  backend: s3
  path: my-bucket/captures
  region: us-east-1
  endpoint: http://localhost:9000
  s3_path_style: true

adapter:
  type: webhook
  url: https://hooks.example.com/sdlink
  headers:
    Authorization: Bearer ${SDLINK_HOOK_TOKEN}
  timeout: 10s
  retries: 3
  queue_size: 16

output:
  dir: ./received
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "device", cfg.Device, "bench-esp32")
	assertEqual(t, "input", cfg.Input, "/dev/ttyUSB0")
	assertEqual(t, "encoding", cfg.Encoding, "jsonl")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")
	if !cfg.Demux {
		t.Error("expected demux=true")
	}
	if cfg.StaleAfter.Duration != 30*time.Second {
		t.Errorf("expected stale_after=30s, got %v", cfg.StaleAfter.Duration)
	}
	if cfg.MaxChunk != 400 {
		t.Errorf("expected max_chunk=400, got %d", cfg.MaxChunk)
	}

	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/captures")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "http://localhost:9000")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/sdlink")
	assertEqual(t, "adapter.headers.Authorization", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("expected adapter.timeout=10s, got %v", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}
	if cfg.Adapter.QueueSize != 16 {
		t.Errorf("adapter.queue_size = %d, want 16", cfg.Adapter.QueueSize)
	}

	assertEqual(t, "output.dir", cfg.Output.Dir, "./received")
}

func TestLoad_EmptyConfig(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Device != "" || cfg.Adapter.Retries != nil {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/sdlink.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "sdlink.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected empty config, got nil")
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"invalid yaml", "{{invalid yaml", "invalid YAML"},
		{"unknown key", "devise: typo\n", "invalid YAML"},
		{"bad duration", "stale_after: soon\n", "invalid duration"},
		{"bad encoding", "encoding: protobuf\n", "encoding"},
		{"negative chunk", "max_chunk: -1\n", "max_chunk"},
		{"bad backend", "storage:\n  backend: ftp\n", "storage.backend"},
		{"s3 without path", "storage:\n  backend: s3\n", "storage.path"},
		{"bad adapter", "adapter:\n  type: kafka\n  url: x\n", "adapter.type"},
		{"adapter without url", "adapter:\n  type: redis\n", "adapter.url"},
		{"negative retries", "adapter:\n  retries: -2\n", "adapter.retries"},
		{"negative queue", "adapter:\n  queue_size: -1\n", "adapter.queue_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{Encoding: "xml", MaxChunk: -5}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "encoding") || !strings.Contains(msg, "max_chunk") {
		t.Errorf("expected both violations, got %q", msg)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdlink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
