package logging

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edgestream/streamsup/internal/backoff"
)

// RemoteShipperConfig parameterizes RemoteShipper. Endpoint is required;
// everything else has a sane default applied by NewRemoteShipper.
type RemoteShipperConfig struct {
	Endpoint      string
	BatchSize     int           // records per HTTP POST, default 50
	BatchInterval time.Duration // max time a record waits before shipping, default 5s
	MaxMemory     int           // bytes buffered before oldest records are dropped, default 1MB
	RetryAttempts int           // per-batch POST retry ceiling, default 3
	RetryDelay    time.Duration // base retry delay, default 1s
	HTTPClient    *http.Client
}

func (c RemoteShipperConfig) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return 50
}

func (c RemoteShipperConfig) batchInterval() time.Duration {
	if c.BatchInterval > 0 {
		return c.BatchInterval
	}
	return 5 * time.Second
}

func (c RemoteShipperConfig) maxMemory() int {
	if c.MaxMemory > 0 {
		return c.MaxMemory
	}
	return 1 << 20
}

// RemoteShipper is an io.Writer that batches newline-delimited log records
// and ships them to an HTTP log-ingestion endpoint, with capped-exponential
// retry per batch. It is meant to be teed alongside a local sink (stderr,
// RotatingWriter) rather than used alone: a batch that exhausts its retries
// is dropped and reported via onDropped, since losing the network should
// never block or crash the daemon's own logging.
type RemoteShipper struct {
	cfg    RemoteShipperConfig
	client *http.Client

	onDropped func(error)

	mu         sync.Mutex
	pending    [][]byte
	pendingLen int

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRemoteShipper starts the background flush loop and returns a shipper
// ready to accept writes. Call Close to flush any remainder and stop the
// loop.
func NewRemoteShipper(cfg RemoteShipperConfig, onDropped func(error)) (*RemoteShipper, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("logging: remote shipper endpoint cannot be empty")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if onDropped == nil {
		onDropped = func(error) {}
	}

	s := &RemoteShipper{
		cfg:       cfg,
		client:    client,
		onDropped: onDropped,
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Write buffers p as one record. It never blocks on the network: when the
// buffer exceeds MaxMemory, the oldest records are dropped to make room.
func (s *RemoteShipper) Write(p []byte) (int, error) {
	record := make([]byte, len(p))
	copy(record, p)

	s.mu.Lock()
	s.pending = append(s.pending, record)
	s.pendingLen += len(record)
	for s.pendingLen > s.cfg.maxMemory() && len(s.pending) > 1 {
		dropped := s.pending[0]
		s.pending = s.pending[1:]
		s.pendingLen -= len(dropped)
	}
	full := len(s.pending) >= s.cfg.batchSize()
	s.mu.Unlock()

	if full {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Close flushes any buffered records and stops the background loop.
func (s *RemoteShipper) Close() error {
	close(s.stopCh)
	<-s.doneCh
	return nil
}

func (s *RemoteShipper) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.batchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushCh:
			s.flush()
		case <-s.stopCh:
			s.flush()
			return
		}
	}
}

func (s *RemoteShipper) flush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = nil
	s.pendingLen = 0
	s.mu.Unlock()

	if err := s.send(batch); err != nil {
		s.onDropped(err)
	}
}

// send POSTs batch as a newline-delimited JSON body, retrying with capped
// exponential backoff per RetryAttempts/RetryDelay.
func (s *RemoteShipper) send(batch [][]byte) error {
	body := bytes.Join(batch, []byte("\n"))

	b := backoff.NewBackoff(s.retryDelay(), 30*time.Second, s.retryAttempts()).WithJitter(0.5)
	var lastErr error
	for {
		if err := s.postOnce(body); err != nil {
			lastErr = err
			if b.ShouldStop() {
				return fmt.Errorf("logging: remote shipper: giving up after %d attempts: %w", b.Attempts()+1, lastErr)
			}
			if waitErr := b.Wait(context.Background()); waitErr != nil {
				return waitErr
			}
			b.RecordAttempt()
			continue
		}
		return nil
	}
}

func (s *RemoteShipper) postOnce(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (s *RemoteShipper) retryAttempts() int {
	if s.cfg.RetryAttempts > 0 {
		return s.cfg.RetryAttempts
	}
	return 3
}

func (s *RemoteShipper) retryDelay() time.Duration {
	if s.cfg.RetryDelay > 0 {
		return s.cfg.RetryDelay
	}
	return time.Second
}
