// Package metrics exposes the coach's pacing and speech counters in the
// Prometheus format. Every method is safe on a nil *Metrics, so callers
// that run without metrics need no checks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

const namespace = "rendezvouscoach"

// Metrics holds the collectors of one process. It uses its own registry
// rather than the global default.
type Metrics struct {
	registry *prometheus.Registry

	samplesAccepted prometheus.Counter
	samplesRejected *prometheus.CounterVec
	cuesSpoken      *prometheus.CounterVec
	cuesCancelled   prometheus.Counter
	speechFailures  prometheus.Counter
	deviation       prometheus.Gauge
	band            prometheus.Gauge
	pace            prometheus.Gauge
	remaining       prometheus.Gauge
	cueLatency      prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		samplesAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_accepted_total",
			Help:      "Progress samples folded into the pace estimate.",
		}),
		samplesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Progress samples rejected, by reason.",
		}, []string{"reason"}),
		cuesSpoken: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cues_spoken_total",
			Help:      "Pacing cues handed to the speech sink, by band.",
		}, []string{"band"}),
		cuesCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cues_cancelled_total",
			Help:      "Cues interrupted by a more urgent one or by session end.",
		}),
		speechFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_failures_total",
			Help:      "Cues whose synthesis or playback failed.",
		}),
		deviation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deviation_seconds",
			Help:      "Projected arrival minus rendezvous. Positive means late.",
		}),
		band: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "band",
			Help:      "Current deviation band, -3 (critically ahead) to 3 (critically behind).",
		}),
		pace: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pace_meters_per_second",
			Help:      "Smoothed speed.",
		}),
		remaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_meters",
			Help:      "Distance still to cover.",
		}),
		cueLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cue_duration_seconds",
			Help:      "Time from handing a cue to the sink until it completes.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SampleAccepted records an accepted sample and the resulting state.
func (m *Metrics) SampleAccepted(ps domain.PacingState) {
	if m == nil {
		return
	}
	m.samplesAccepted.Inc()
	m.remaining.Set(ps.Remaining)
	m.pace.Set(ps.Pace)
	m.deviation.Set(ps.Deviation.Seconds())
	m.band.Set(BandValue(ps.Band))
}

// SampleRejected records a rejected sample.
func (m *Metrics) SampleRejected(reason string) {
	if m == nil {
		return
	}
	m.samplesRejected.WithLabelValues(reason).Inc()
}

// CueSpoken records a cue handed to the sink.
func (m *Metrics) CueSpoken(band domain.Band) {
	if m == nil {
		return
	}
	m.cuesSpoken.WithLabelValues(band.String()).Inc()
}

// CueCancelled records an interrupted cue.
func (m *Metrics) CueCancelled() {
	if m == nil {
		return
	}
	m.cuesCancelled.Inc()
}

// CueDone records a completed cue and how long it took.
func (m *Metrics) CueDone(seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.cueLatency.Observe(seconds)
	if failed {
		m.speechFailures.Inc()
	}
}

// BandValue maps a band onto the signed gauge scale. Unknown and on_time
// are both 0.
func BandValue(b domain.Band) float64 {
	if !b.Known() {
		return 0
	}
	return float64(int(b) - int(domain.BandOnTime))
}
