// Package redis fans transfer events out over Redis pub/sub.
//
// Events are published as JSON. Failed transfers may be routed to their
// own channel. With a history key, every event is also kept on a capped
// list (newest first) that History reads back.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/sdlink/adapter"
)

const (
	// DefaultChannel receives events when no channel is configured.
	DefaultChannel = "sdlink:transfer_completed"
	// DefaultTimeout bounds one publish attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the number of republish attempts.
	DefaultRetries = 3
	// DefaultHistoryLen caps the history list.
	DefaultHistoryLen = 100
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL     string
	Channel string
	// FailedChannel receives transfer_failed events. Empty means Channel.
	FailedChannel string
	// HistoryKey enables the capped history list.
	HistoryKey string
	HistoryLen int64
	Timeout    time.Duration
	Retries    int
}

// Adapter publishes events through a go-redis client.
type Adapter struct {
	client        *goredis.Client
	channel       string
	failedChannel string
	historyKey    string
	historyLen    int64
	timeout       time.Duration
	retries       int
}

// New parses the URL and applies defaults.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	a := &Adapter{
		client:        goredis.NewClient(opts),
		channel:       orDefault(cfg.Channel, DefaultChannel),
		failedChannel: cfg.FailedChannel,
		historyKey:    cfg.HistoryKey,
		historyLen:    cfg.HistoryLen,
		timeout:       cfg.Timeout,
		retries:       cfg.Retries,
	}
	if a.failedChannel == "" {
		a.failedChannel = a.channel
	}
	if a.historyLen <= 0 {
		a.historyLen = DefaultHistoryLen
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	return a, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// channelFor picks the channel for an event.
func (a *Adapter) channelFor(event *adapter.TransferCompletedEvent) string {
	if event.EventType == adapter.EventTransferFailed {
		return a.failedChannel
	}
	return a.channel
}

// Publish sends the event, retrying connection failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.TransferCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.channelFor(event)

	return adapter.Retry(ctx, "redis", a.retries, nil, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		if a.historyKey == "" {
			return a.client.Publish(attemptCtx, channel, body).Err()
		}
		// PUBLISH, LPUSH and LTRIM commit together or not at all.
		_, err := a.client.TxPipelined(attemptCtx, func(pipe goredis.Pipeliner) error {
			pipe.Publish(attemptCtx, channel, body)
			pipe.LPush(attemptCtx, a.historyKey, body)
			pipe.LTrim(attemptCtx, a.historyKey, 0, a.historyLen-1)
			return nil
		})
		return err
	})
}

// History returns up to n events from the history list, newest first.
// It returns nil when no history key is configured.
func (a *Adapter) History(ctx context.Context, n int64) ([]adapter.TransferCompletedEvent, error) {
	if a.historyKey == "" || n <= 0 {
		return nil, nil
	}
	raw, err := a.client.LRange(ctx, a.historyKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read history: %w", err)
	}
	events := make([]adapter.TransferCompletedEvent, 0, len(raw))
	for _, item := range raw {
		var ev adapter.TransferCompletedEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("redis: decode history entry: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
