package supervisor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the Supervisor Core updates as it
// processes events. A nil *Metrics (the Config default) simply means no
// collector is touched; every call site on Metrics is guarded by a nil
// check on the containing *Metrics, not on individual fields.
type Metrics struct {
	streamState   *prometheus.GaugeVec
	startFailures prometheus.Counter
	crashes       prometheus.Counter
	dedupDrops    prometheus.Counter
	sseReconnects prometheus.Counter
}

// NewMetrics constructs and registers the supervisor's collectors against
// reg. Pass prometheus.DefaultRegisterer to expose them on the process-wide
// /metrics endpoint served by the health module.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "streamsup",
			Name:      "stream_running",
			Help:      "1 if a transcoder is currently running for the court, 0 otherwise.",
		}, []string{"court_id"}),
		startFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsup",
			Name:      "start_failures_total",
			Help:      "Total number of transcoder start attempts that failed.",
		}),
		crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsup",
			Name:      "transcoder_crashes_total",
			Help:      "Total number of transcoders that exited unexpectedly.",
		}),
		dedupDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsup",
			Name:      "dedup_drops_total",
			Help:      "Total number of control-plane events dropped as duplicates.",
		}),
		sseReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamsup",
			Name:      "sse_reconnects_total",
			Help:      "Total number of times the SSE client reconnected to the control plane.",
		}),
	}

	reg.MustRegister(m.streamState, m.startFailures, m.crashes, m.dedupDrops, m.sseReconnects)
	return m
}

// SSEReconnected increments the SSE reconnect counter. Exposed as a method
// (rather than the counter itself) so it can be passed directly as
// controlplane.Config.OnReconnect without that package depending on
// Prometheus. Safe to call on a nil *Metrics.
func (m *Metrics) SSEReconnected() {
	if m == nil {
		return
	}
	m.sseReconnects.Inc()
}
