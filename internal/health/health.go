// SPDX-License-Identifier: MIT

// Package health provides the agent's /healthz and /metrics HTTP endpoints.
//
// /healthz reports per-stream state as JSON, suitable for a load-balancer
// probe or systemd watchdog. /metrics exposes the supervisor's Prometheus
// collectors via promhttp.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamStatus describes the health state of a single per-court stream.
type StreamStatus struct {
	CourtID   string    `json:"courtId"`
	RecordID  string    `json:"recordId"`
	State     string    `json:"state"`
	ProcessID int       `json:"processId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusProvider supplies the live per-stream state for /healthz. The
// Supervisor implements this by reading the Stream Record Store.
type StatusProvider interface {
	Streams() []StreamStatus
}

// Response is the JSON body returned by /healthz.
type Response struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Streams   []StreamStatus `json:"streams"`
}

// Handler serves /healthz and /metrics.
type Handler struct {
	provider StatusProvider
	metrics  http.Handler
}

// NewHandler creates a health handler backed by provider for /healthz and
// gatherer for /metrics.
func NewHandler(provider StatusProvider, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		provider: provider,
		metrics:  promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// ServeHTTP implements http.Handler, routing to /healthz and /metrics.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/metrics":
		h.metrics.ServeHTTP(w, r)
	default:
		h.serveHealth(w, r)
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := Response{Timestamp: time.Now(), Status: "healthy"}
	if h.provider != nil {
		resp.Streams = h.provider.Streams()
	}
	for _, s := range resp.Streams {
		if s.State == "FAILED" {
			resp.Status = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ListenAndServe starts the health HTTP server on addr and shuts it down
// gracefully when ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	return ListenAndServeReady(ctx, addr, handler, nil)
}

// ListenAndServeReady starts the health HTTP server, binding synchronously
// so port-in-use errors surface immediately, and closes ready once bound.
func ListenAndServeReady(ctx context.Context, addr string, handler http.Handler, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if ready != nil {
		close(ready)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}
