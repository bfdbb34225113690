// Package controlplane implements the Control-Plane Client: a single
// long-lived SSE subscription with reconnect/backoff, plus the two
// request/response HTTP calls (go-live notification, heartbeat).
//
// Every REST call uses NewRequestWithContext, an explicit *http.Client with
// a timeout, status-code branching, and wrapped errors. The SSE frame reader
// is built directly on bufio.Scanner rather than a dedicated SSE client
// library.
package controlplane

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/edgestream/streamsup/internal/backoff"
	"github.com/edgestream/streamsup/internal/model"
)

const (
	// MaxSSERetryDelay is the reconnect backoff ceiling.
	MaxSSERetryDelay = 30 * time.Second

	// GoLiveMaxAttempts bounds the go-live notification retry.
	GoLiveMaxAttempts = 5
	// GoLiveBaseDelay is the first retry delay for go-live, doubled each attempt.
	GoLiveBaseDelay = 1 * time.Second
	// GoLiveJitterRatio is the symmetric jitter applied to each retry delay.
	GoLiveJitterRatio = 0.5
)

// Config parameterizes the client. baseUrl and groundId are required per the
// configuration surface; everything else has sane defaults.
type Config struct {
	BaseURL          string
	GroundID         string
	RetryInterval    time.Duration // default 1s
	MaxRetries       int           // default 0 (unbounded)
	HTTPClient       *http.Client  // default: 0 timeout for the SSE GET (long-lived), separate client for notifications
	Logger           *slog.Logger

	// OnReconnect, if set, is invoked once per successful (re)connection to
	// the SSE stream, including the very first one. Used by the caller to
	// drive a reconnect counter without this package depending on Prometheus.
	OnReconnect func()
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) retryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return time.Second
}

// Client maintains the SSE subscription and issues notification calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	notifyHTTP *http.Client

	backoff   *backoff.Backoff
	connected atomic.Bool
}

// New returns a Client. baseUrl and groundId must be non-empty.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("controlplane: baseUrl cannot be empty")
	}
	if cfg.GroundID == "" {
		return nil, fmt.Errorf("controlplane: groundId cannot be empty")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{} // SSE GET is intentionally long-lived: no timeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		notifyHTTP: &http.Client{Timeout: 10 * time.Second},
		backoff:    backoff.NewBackoff(cfg.retryInterval(), MaxSSERetryDelay, cfg.MaxRetries),
	}, nil
}

// EventHandler is invoked for every decoded, non-duplicate inbound event.
type EventHandler func(model.Event)

// Run subscribes to the SSE stream and dispatches decoded events to handle,
// reconnecting with capped exponential backoff on any failure, until ctx is
// done or the retry ceiling (if any) is exhausted. It returns nil on
// ctx.Done() and a TransportFailure-kind error if MaxRetries is exhausted.
func (c *Client) Run(ctx context.Context, handle EventHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.subscribeOnce(ctx, handle)
		c.connected.Store(false)
		if err == nil {
			// subscribeOnce only returns nil if ctx was cancelled mid-stream.
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		c.cfg.logger().Warn("sse subscription failed, reconnecting", "error", err, "attempt", c.backoff.Attempts()+1)

		if c.backoff.ShouldStop() {
			return model.NewError(model.KindTransportFailure, "sse retries exhausted", err)
		}

		if waitErr := c.backoff.Wait(ctx); waitErr != nil {
			return nil
		}
		c.backoff.RecordAttempt()
	}
}

// Reconnect resets the backoff attempt counter, used by a manual
// operator-triggered rebind (and by the health tick when it observes the
// subscription is down).
func (c *Client) Reconnect() {
	c.backoff.Reset()
}

// Connected reports whether the SSE subscription is currently established.
// It flips true right after a successful connect and false as soon as
// subscribeOnce returns, so a caller polling between reconnect attempts sees
// an accurate picture without needing its own heartbeat tracking.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) subscribeOnce(ctx context.Context, handle EventHandler) error {
	url := fmt.Sprintf("%s/api/v1/padel-grounds/%s/events", c.cfg.BaseURL, c.cfg.GroundID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sse connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sse connect: unexpected status %d", resp.StatusCode)
	}

	// A successful connect resets the backoff so a long-lived good connection
	// doesn't leave a stale multiplier in place for the next, unrelated drop.
	c.backoff.Reset()
	c.connected.Store(true)
	if c.cfg.OnReconnect != nil {
		c.cfg.OnReconnect()
	}

	if err := readFrames(resp.Body, func(data string) {
		c.decodeAndDispatch(data, handle)
	}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("sse stream: %w", err)
	}
	return nil
}

// readFrames parses the standard SSE framing: "data:" lines accumulate until
// a blank line terminates one event, at which point onData is invoked with
// the joined data payload. "event:" lines are read but ignored by this
// client.
func readFrames(r io.Reader, onData func(data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(dataLines) > 0 {
				onData(strings.Join(dataLines, "\n"))
				dataLines = dataLines[:0]
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			// event type is not branched on; every event carries its own
			// "action" field in the JSON payload.
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive line, ignored
		}
	}
	return scanner.Err()
}

func (c *Client) decodeAndDispatch(data string, handle EventHandler) {
	var evt model.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		c.cfg.logger().Warn("dropping malformed sse event", "error", err)
		return
	}
	if !evt.Valid() {
		c.cfg.logger().Warn("dropping sse event missing required fields", "action", evt.Action)
		return
	}
	handle(evt)
}
