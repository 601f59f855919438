// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modbus_poller"

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder owns the process collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	workers      prometheus.Gauge
	coilWrites   *prometheus.CounterVec
}

// New creates a recorder on its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Completed poll cycles by result.",
		}, []string{"result"}),

		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Wall time of one poll cycle including persistence.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Running per-device workers.",
		}),

		coilWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coil_writes_total",
			Help:      "Coil write attempts by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(r.polls, r.pollDuration, r.workers, r.coilWrites)

	return r
}

// ObservePoll records one finished cycle.
func (r *Recorder) ObservePoll(ok bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(result(ok)).Inc()
	r.pollDuration.Observe(elapsed.Seconds())
}

// SetWorkers records the size of the running worker set.
func (r *Recorder) SetWorkers(n int) {
	if r == nil {
		return
	}
	r.workers.Set(float64(n))
}

// ObserveCoilWrite records one write attempt that reached the device.
func (r *Recorder) ObserveCoilWrite(ok bool) {
	if r == nil {
		return
	}
	r.coilWrites.WithLabelValues(result(ok)).Inc()
}

// Handler serves the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}
