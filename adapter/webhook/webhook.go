// Package webhook delivers transfer events to an HTTP endpoint.
//
// Each event is one JSON POST. Connection errors, 5xx, 408 and 429 are
// retried; any other non-2xx status is final. When a secret is configured
// the body is signed with HMAC-SHA256 in the X-Sdlink-Signature header.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pithecene-io/sdlink/adapter"
	"github.com/pithecene-io/sdlink/types"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of redeliveries after a failed attempt.
	DefaultRetries = 3

	// HeaderEvent carries the event type.
	HeaderEvent = "X-Sdlink-Event"
	// HeaderSession carries the receive session ID.
	HeaderSession = "X-Sdlink-Session"
	// HeaderSignature carries "sha256=<hex hmac of body>".
	HeaderSignature = "X-Sdlink-Signature"

	maxErrorBody = 256
)

// Config configures the webhook adapter.
type Config struct {
	URL     string            // required
	Headers map[string]string // added to every request
	Secret  string            // enables body signing
	Timeout time.Duration     // per attempt, default DefaultTimeout
	Retries int
}

// Adapter posts events to Config.URL.
type Adapter struct {
	url     string
	headers map[string]string
	secret  []byte
	retries int
	client  *http.Client
}

// New validates cfg and returns an adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		url:     cfg.URL,
		headers: cfg.Headers,
		secret:  []byte(cfg.Secret),
		retries: cfg.Retries,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Publish delivers the event, retrying transient failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.TransferCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.retries, isFinal, func(ctx context.Context) error {
		req, err := a.newRequest(ctx, event, body)
		if err != nil {
			return err
		}
		return a.deliver(req)
	})
}

func (a *Adapter) newRequest(ctx context.Context, event *adapter.TransferCompletedEvent, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "sdlink/"+types.Version)
	h.Set(HeaderEvent, event.EventType)
	h.Set(HeaderSession, event.SessionID)
	if len(a.secret) > 0 {
		h.Set(HeaderSignature, Sign(a.secret, body))
	}
	for k, v := range a.headers {
		h.Set(k, v)
	}
	return req, nil
}

func (a *Adapter) deliver(req *http.Request) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// StatusError is a non-2xx response. Body holds the start of the
// response body, if any.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the receiver may accept a redelivery.
func (e *StatusError) Temporary() bool {
	switch {
	case e.Code >= 500:
		return true
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	}
	return false
}

func isFinal(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && !statusErr.Temporary()
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
