package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// GoLiveYouTube notifies the control plane that courtId's stream is live.
// 5xx responses are retried with exponential backoff (base 1s, factor 2,
// ±50% jitter) up to GoLiveMaxAttempts; 4xx responses are returned as-is,
// not retried.
func (c *Client) GoLiveYouTube(ctx context.Context, courtID, streamKey string) error {
	url := fmt.Sprintf("%s/api/v1/padel-grounds/%s/courts/%s/go-live/%s", c.cfg.BaseURL, c.cfg.GroundID, courtID, streamKey)

	delay := GoLiveBaseDelay
	var lastErr error
	for attempt := 1; attempt <= GoLiveMaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("controlplane: build go-live request: %w", err)
		}

		resp, err := c.notifyHTTP.Do(req)
		if err != nil {
			lastErr = err
		} else {
			status := resp.StatusCode
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if status >= 200 && status < 300 {
				return nil
			}
			if status >= 400 && status < 500 {
				return fmt.Errorf("controlplane: go-live rejected: status %d", status)
			}
			lastErr = fmt.Errorf("controlplane: go-live: status %d", status)
		}

		if attempt == GoLiveMaxAttempts {
			break
		}

		jittered := applyJitter(delay, GoLiveJitterRatio)
		t := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}

	return fmt.Errorf("controlplane: go-live exhausted %d attempts: %w", GoLiveMaxAttempts, lastErr)
}

// SendHeartbeat posts a single heartbeat. The caller controls cadence; this
// makes exactly one attempt.
func (c *Client) SendHeartbeat(ctx context.Context) error {
	url := c.cfg.BaseURL + "/api/v1/padel-grounds/heartbeat"
	body, err := json.Marshal(map[string]string{"groundId": c.cfg.GroundID})
	if err != nil {
		return fmt.Errorf("controlplane: marshal heartbeat body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("controlplane: build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.notifyHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("controlplane: heartbeat: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controlplane: heartbeat: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func applyJitter(base time.Duration, ratio float64) time.Duration {
	if ratio <= 0 {
		return base
	}
	factor := 1 + (rand.Float64()*2-1)*ratio
	d := time.Duration(float64(base) * factor)
	if d < 0 {
		d = 0
	}
	return d
}
