package logging

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRemoteShipperRejectsEmptyEndpoint(t *testing.T) {
	_, err := NewRemoteShipper(RemoteShipperConfig{}, nil)
	require.Error(t, err)
}

func TestRemoteShipperFlushesOnBatchSize(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		atomic.AddInt32(&received, int32(len(body)))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewRemoteShipper(RemoteShipperConfig{
		Endpoint:      srv.URL,
		BatchSize:     2,
		BatchInterval: time.Hour,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Write([]byte(`{"msg":"one"}`))
	_, _ = s.Write([]byte(`{"msg":"two"}`))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestRemoteShipperFlushesOnInterval(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		atomic.AddInt32(&received, int32(len(body)))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewRemoteShipper(RemoteShipperConfig{
		Endpoint:      srv.URL,
		BatchSize:     1000,
		BatchInterval: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Write([]byte(`{"msg":"solo"}`))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestRemoteShipperDropsOldestPastMaxMemory(t *testing.T) {
	s, err := NewRemoteShipper(RemoteShipperConfig{
		Endpoint:      "http://127.0.0.1:1",
		BatchSize:     1000,
		BatchInterval: time.Hour,
		MaxMemory:     10,
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Write([]byte("0123456789"))
	_, _ = s.Write([]byte("abcdefghij"))

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.pending, 1)
	require.Equal(t, "abcdefghij", string(s.pending[0]))
}

func TestRemoteShipperReportsDroppedBatchOnFailure(t *testing.T) {
	dropped := make(chan error, 1)
	s, err := NewRemoteShipper(RemoteShipperConfig{
		Endpoint:      "http://127.0.0.1:1",
		BatchSize:     1,
		BatchInterval: time.Hour,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, func(err error) { dropped <- err })
	require.NoError(t, err)
	defer s.Close()

	_, _ = s.Write([]byte(`{"msg":"unreachable"}`))

	select {
	case err := <-dropped:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected onDropped to be called")
	}
}
