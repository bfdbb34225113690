package controlplane

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package's test run if any test leaves a goroutine
// running past its own completion - the SSE subscribe loop and its
// reconnect backoff are the ones most likely to leak if a test forgets to
// cancel its context. The persistConn goroutines are ignored: Go's HTTP
// transport keeps an idle keep-alive connection's read/write loops running
// past the point any test closes its httptest.Server, which is not a leak
// this package introduced.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}
