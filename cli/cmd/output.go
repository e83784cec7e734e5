package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pithecene-io/sdlink/cli/render"
	"github.com/pithecene-io/sdlink/ingest"
	"github.com/pithecene-io/sdlink/listing"
	"github.com/pithecene-io/sdlink/log"
	"github.com/pithecene-io/sdlink/types"
)

// transferView is the rendered summary of a completed transfer.
type transferView struct {
	Type       string `json:"type" yaml:"type"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Chunks     int    `json:"chunks" yaml:"chunks"`
	Bytes      int    `json:"bytes" yaml:"bytes"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	SavedTo    string `json:"saved_to,omitempty" yaml:"saved_to,omitempty"`
}

// outputHandler renders listings, saves file data and remembers what the
// session produced.
type outputHandler struct {
	renderer *render.Renderer // nil when quiet
	outDir   string
	logger   *log.Logger

	mu      sync.Mutex
	listing *types.FileNode
	saved   map[string]string // device path -> local path
	failed  []*types.TransferFailure
}

func newOutputHandler(r *render.Renderer, outDir string, logger *log.Logger) *outputHandler {
	return &outputHandler{
		renderer: r,
		outDir:   outDir,
		logger:   logger,
		saved:    make(map[string]string),
	}
}

// HandleTransfer implements ingest.Handler.
func (h *outputHandler) HandleTransfer(_ context.Context, t *types.Transfer) error {
	view := transferView{
		Type:       t.Key.Type,
		File:       t.Key.File,
		Chunks:     t.Chunks,
		Bytes:      len(t.Payload),
		Duplicates: t.Duplicates,
		DurationMs: t.Duration().Milliseconds(),
	}

	switch t.Key.Type {
	case types.KindFileList:
		root, err := listing.Parse(t.Payload)
		if err != nil {
			// A bad listing is reported but does not end the session.
			h.logger.Warn("listing parse failed", map[string]any{"error": err.Error()})
			return nil
		}
		h.mu.Lock()
		h.listing = root
		h.mu.Unlock()
		if h.renderer != nil {
			return h.renderer.RenderTree(root)
		}
		return nil

	case types.KindFileData:
		if h.outDir != "" {
			dst, err := h.save(t)
			if err != nil {
				return err
			}
			view.SavedTo = dst
		}
	}

	if h.renderer != nil {
		return h.renderer.Render(view)
	}
	return nil
}

// HandleFailure implements ingest.Handler.
func (h *outputHandler) HandleFailure(_ context.Context, f *types.TransferFailure) error {
	h.mu.Lock()
	h.failed = append(h.failed, f)
	h.mu.Unlock()
	if h.renderer != nil {
		fmt.Fprintf(os.Stderr, "transfer %s failed: %s\n", f.Key, f.Message)
	}
	return nil
}

// save writes file data under outDir using the base name of the device
// path.
func (h *outputHandler) save(t *types.Transfer) (string, error) {
	name := localName(t.Key.File)
	if name == "" {
		return "", fmt.Errorf("cannot derive a local name from %q", t.Key.File)
	}
	if err := os.MkdirAll(h.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dst := filepath.Join(h.outDir, name)
	if err := os.WriteFile(dst, t.Payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}

	h.mu.Lock()
	h.saved[t.Key.File] = dst
	h.mu.Unlock()
	h.logger.Info("file saved", map[string]any{
		"file":  t.Key.File,
		"path":  dst,
		"bytes": len(t.Payload),
	})
	return dst, nil
}

// localName flattens a device path to a safe file name.
func localName(devicePath string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(devicePath, `\`, "/")))
	switch base {
	case ".", "..", string(filepath.Separator), "":
		return ""
	}
	return base
}

// lastListing returns the most recent parsed listing, if any.
func (h *outputHandler) lastListing() *types.FileNode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listing
}

// savedPath returns the local path for a device file saved this session.
func (h *outputHandler) savedPath(devicePath string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.saved[devicePath]
	return p, ok
}

// Verify outputHandler implements ingest.Handler.
var _ ingest.Handler = (*outputHandler)(nil)
