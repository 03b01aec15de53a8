package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rafeeq"

// Prometheus holds the exported metric vectors on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	stageTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	providerTotal    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	cooldowns        *prometheus.GaugeVec
	mirrorUp         prometheus.Gauge
	mirrorFailures   prometheus.Gauge
}

// NewPrometheus registers the rafeeq metrics plus Go runtime collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,

		// Labels: stage, outcome (succeeded, failed, miss, skipped)
		stageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "stages_total",
			Help:      "Orchestrator stage executions by outcome",
		}, []string{"stage", "outcome"}),

		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "stage_duration_seconds",
			Help:      "Orchestrator stage latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),

		// Labels: provider, status (ok, error)
		providerTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Guarded provider calls by status",
		}, []string{"provider", "status"}),

		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Guarded provider call latency in seconds, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),

		cooldowns: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cooldown_remaining_seconds",
			Help:      "Seconds until a provider leaves cooldown; 0 when available",
		}, []string{"provider"}),

		mirrorUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "up",
			Help:      "1 when the last cloud mirror round trip reached the server",
		}),

		mirrorFailures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "consecutive_failures",
			Help:      "Cloud mirror round trips failed since the last success",
		}),
	}
}

// SetMirror publishes the cloud mirror state.
func (p *Prometheus) SetMirror(up bool, failures int64) {
	v := 0.0
	if up {
		v = 1
	}
	p.mirrorUp.Set(v)
	p.mirrorFailures.Set(float64(failures))
}

// SetCooldown publishes a provider's remaining cooldown.
func (p *Prometheus) SetCooldown(provider string, remainingSeconds float64) {
	p.cooldowns.WithLabelValues(provider).Set(remainingSeconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
