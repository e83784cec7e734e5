package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sdlink/adapter"
	"github.com/pithecene-io/sdlink/adapter/redis"
	"github.com/pithecene-io/sdlink/adapter/webhook"
	"github.com/pithecene-io/sdlink/cli/config"
	"github.com/pithecene-io/sdlink/cli/render"
	"github.com/pithecene-io/sdlink/cli/tui"
	"github.com/pithecene-io/sdlink/ingest"
	"github.com/pithecene-io/sdlink/log"
	"github.com/pithecene-io/sdlink/metrics"
	"github.com/pithecene-io/sdlink/store"
	"github.com/pithecene-io/sdlink/types"
	"github.com/pithecene-io/sdlink/wire"
)

// metricsWriteTimeout bounds the final metrics write, which runs even
// after the session context is canceled.
const metricsWriteTimeout = 30 * time.Second

// adapterDrainTimeout bounds publishing the events still queued when the
// stream ends.
const adapterDrainTimeout = 30 * time.Second

// ReceiveCommand returns the receive command.
func ReceiveCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		EncodingFlag,
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Serial device or capture file to read (\"-\" for stdin)",
			Value:   "-",
		},
		&cli.StringFlag{Name: "device", Usage: "Label for the sending device (partition key)", Value: "default"},
		&cli.BoolFlag{Name: "demux", Usage: "Track interleaved transfers independently"},
		&cli.DurationFlag{Name: "stale-after", Usage: "Discard transfers idle for this long (0 disables)"},
		&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for received file data"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error", Value: "info"},
		&cli.BoolFlag{Name: "echo", Usage: "Echo non-envelope console output to stderr"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress transfer and summary output"},
		&cli.StringFlag{Name: "adapter", Usage: "Notification adapter: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Webhook URL or Redis URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis channel"},
		&cli.IntFlag{Name: "adapter-retries", Usage: "Publish retry attempts", Value: webhook.DefaultRetries},
		&cli.DurationFlag{Name: "adapter-timeout", Usage: "Per-publish timeout"},
		&cli.IntFlag{Name: "adapter-queue", Usage: "Events buffered for the publisher before new ones are dropped", Value: adapter.DefaultQueueSize},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags, OutputFlags()...)

	return &cli.Command{
		Name:   "receive",
		Usage:  "Reassemble chunked transfers from a device stream",
		Flags:  flags,
		Action: receiveAction,
	}
}

// receiveChoice holds resolved receive configuration.
type receiveChoice struct {
	input      string
	device     string
	encoding   string
	demux      bool
	staleAfter time.Duration
	outDir     string
	logLevel   string
	storage    storageChoice
	adapter    adapterChoice
}

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	kind       string
	url        string
	channel    string
	failedChan string
	historyKey string
	headers    map[string]string
	secret     string
	retries    int
	timeout    time.Duration
	queue      int
}

func resolveReceive(c *cli.Context, cfg *config.Config) receiveChoice {
	choice := receiveChoice{
		input:      pick(c, "input", cfg.Input),
		device:     pick(c, "device", cfg.Device),
		encoding:   pick(c, "encoding", cfg.Encoding),
		demux:      c.Bool("demux") || cfg.Demux,
		staleAfter: c.Duration("stale-after"),
		outDir:     pick(c, "output-dir", cfg.Output.Dir),
		logLevel:   pick(c, "log-level", cfg.LogLevel),
		storage:    resolveStorage(c, cfg.Storage),
		adapter: adapterChoice{
			kind:       pick(c, "adapter", cfg.Adapter.Type),
			url:        pick(c, "adapter-url", cfg.Adapter.URL),
			channel:    pick(c, "adapter-channel", cfg.Adapter.Channel),
			failedChan: cfg.Adapter.FailedChannel,
			historyKey: cfg.Adapter.HistoryKey,
			headers:    cfg.Adapter.Headers,
			secret:     cfg.Adapter.Secret,
			retries:    c.Int("adapter-retries"),
			timeout:    c.Duration("adapter-timeout"),
			queue:      c.Int("adapter-queue"),
		},
	}
	if !c.IsSet("stale-after") && cfg.StaleAfter.Duration > 0 {
		choice.staleAfter = cfg.StaleAfter.Duration
	}
	if !c.IsSet("adapter-retries") && cfg.Adapter.Retries != nil {
		choice.adapter.retries = *cfg.Adapter.Retries
	}
	if !c.IsSet("adapter-timeout") && cfg.Adapter.Timeout.Duration > 0 {
		choice.adapter.timeout = cfg.Adapter.Timeout.Duration
	}
	if !c.IsSet("adapter-queue") && cfg.Adapter.QueueSize > 0 {
		choice.adapter.queue = cfg.Adapter.QueueSize
	}
	return choice
}

// receiveResult is the end-of-session summary.
type receiveResult struct {
	SessionID string           `json:"session_id" yaml:"session_id"`
	Device    string           `json:"device" yaml:"device"`
	Pending   []string         `json:"pending,omitempty" yaml:"pending,omitempty"`
	Outcome   string           `json:"outcome" yaml:"outcome"`
	Metrics   metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func receiveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	choice := resolveReceive(c, cfg)

	level, err := log.ParseLevel(choice.logLevel)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level: %v", err), exitSetupError)
	}

	session := types.SessionMeta{SessionID: uuid.NewString(), Device: choice.device}
	logger := log.NewLoggerWithWriter(&session, os.Stderr, level)
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector(choice.encoding, choice.storage.backend, session.SessionID, session.Device)

	in, closeInput, err := openInput(choice.input)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	defer closeInput()

	source, err := wire.NewSource(choice.encoding, in)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupError)
	}
	if ls, ok := source.(*wire.LineSource); ok {
		echo := c.Bool("echo")
		console := logger.Sugar()
		ls.OnNoise = func(line string) {
			collector.IncNoiseLine()
			console.Debugf("console: %s", line)
			if echo {
				fmt.Fprintln(os.Stderr, line)
			}
		}
	}

	var renderer *render.Renderer
	if !c.Bool("quiet") {
		if renderer, err = render.NewRenderer(c); err != nil {
			return cli.Exit(err.Error(), exitSetupError)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output := newOutputHandler(renderer, choice.outDir, logger)
	handlers := ingest.MultiHandler{output}

	var client store.Client
	if choice.storage.enabled() {
		lc, err := choice.storage.client(ctx, store.Config{
			Dataset:   choice.storage.dataset,
			Device:    session.Device,
			Day:       store.DeriveDay(time.Now()),
			SessionID: session.SessionID,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("storage init failed: %v", err), exitSetupError)
		}
		client = lc
		defer func() { _ = client.Close() }()
		handlers = append(handlers, store.NewHandler(client, collector))
	}

	var publisher *adapter.Handler
	if choice.adapter.kind != "" {
		a, err := buildAdapter(choice.adapter)
		if err != nil {
			return cli.Exit(fmt.Sprintf("adapter init failed: %v", err), exitSetupError)
		}
		defer func() { _ = a.Close() }()
		publisher = adapter.NewHandler(a, session, choice.adapter.queue,
			logger.With(map[string]any{"adapter": choice.adapter.kind}), collector)
		handlers = append(handlers, publisher)
	}

	// Reads from a serial device block until data arrives; closing the
	// input is what unblocks them on interrupt.
	go func() {
		<-ctx.Done()
		closeInput()
	}()

	engine := ingest.NewEngine(source, handlers, ingest.Config{
		Demux:      choice.demux,
		StaleAfter: choice.staleAfter,
	}, logger, collector)

	logger.Info("receive started", map[string]any{
		"input":    choice.input,
		"encoding": choice.encoding,
		"demux":    choice.demux,
		"storage":  choice.storage.backend,
	})
	runErr := engine.Run(ctx)

	if publisher != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), adapterDrainTimeout)
		if err := publisher.Drain(drainCtx); err != nil {
			logger.Warn("adapter drain incomplete", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	snap := collector.Snapshot()
	if client != nil {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsWriteTimeout)
		if err := client.WriteMetrics(writeCtx, snap, time.Now()); err != nil {
			logger.Error("metrics write failed", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	interrupted := ctx.Err() != nil
	if interrupted {
		logger.Info("receive interrupted", nil)
	}
	pending := engine.Pending()
	code := exitCode(runErr, interrupted, snap, len(pending))
	result := receiveResult{
		SessionID: session.SessionID,
		Device:    session.Device,
		Outcome:   outcomeName(code),
		Metrics:   snap,
	}
	for _, k := range pending {
		result.Pending = append(result.Pending, k.String())
	}

	logger.Info("receive finished", map[string]any{
		"outcome":   result.Outcome,
		"completed": snap.TransfersCompleted,
		"failed":    snap.TransfersFailed,
		"pending":   len(pending),
	})

	if renderer != nil {
		if c.Bool("tui") {
			if err := runSessionTUI(output, snap); err != nil {
				return cli.Exit(fmt.Sprintf("tui: %v", err), exitSetupError)
			}
		} else if err := renderer.Render(result); err != nil {
			return err
		}
	}

	switch {
	case runErr != nil && code != exitIncomplete && code != exitSuccess:
		return cli.Exit(runErr.Error(), code)
	case code != exitSuccess:
		return cli.Exit(fmt.Sprintf("session %s", result.Outcome), code)
	}
	return nil
}

// runSessionTUI browses the last listing when one arrived, else shows the
// metrics summary.
func runSessionTUI(output *outputHandler, snap metrics.Snapshot) error {
	root := output.lastListing()
	if root == nil {
		return tui.RunSummary(snap)
	}
	return tui.RunBrowser(root, func(p string, node *types.FileNode) (string, error) {
		if local, ok := output.savedPath(p); ok {
			return fmt.Sprintf("%s saved to %s", p, local), nil
		}
		return fmt.Sprintf("%s (%s) not received this session", p, render.FormatBytes(node.Size)), nil
	})
}

// openInput opens the serial device, capture file or stdin. Serial line
// settings are left to the OS (configure with stty).
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		r, closeFn := detachable(os.Stdin)
		return r, closeFn, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	var once sync.Once
	return f, func() { once.Do(func() { _ = f.Close() }) }, nil
}

// detachable copies src through a pipe. Closing the pipe unblocks the
// reader even when a read on src itself cannot be interrupted, as with an
// interactive terminal. The copy goroutine ends with src.
func detachable(src io.Reader) (io.Reader, func()) {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, src)
		pw.CloseWithError(err)
	}()
	var once sync.Once
	return pr, func() { once.Do(func() { _ = pr.Close() }) }
}

func buildAdapter(choice adapterChoice) (adapter.Adapter, error) {
	switch choice.kind {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Secret:  choice.secret,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:           choice.url,
			Channel:       choice.channel,
			FailedChannel: choice.failedChan,
			HistoryKey:    choice.historyKey,
			Timeout:       choice.timeout,
			Retries:       choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter: %q (must be webhook or redis)", choice.kind)
	}
}

// exitCode maps the run outcome to a process exit code. An interrupted
// session is judged only by what it left unfinished.
func exitCode(runErr error, interrupted bool, snap metrics.Snapshot, pending int) int {
	switch {
	case ingest.IsHandlerError(runErr):
		return exitHandlerFailure
	case runErr != nil && !interrupted:
		return exitStreamError
	case pending > 0 || snap.TransfersFailed > 0 || snap.TransfersExpired > 0:
		return exitIncomplete
	}
	return exitSuccess
}

func outcomeName(code int) string {
	switch code {
	case exitSuccess:
		return "success"
	case exitStreamError:
		return "stream_error"
	case exitHandlerFailure:
		return "handler_failure"
	case exitIncomplete:
		return "incomplete"
	default:
		return "error"
	}
}
