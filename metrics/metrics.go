package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the analysis metrics on a private registry.
type Recorder struct {
	registry             *prometheus.Registry
	analysisDuration     *prometheus.HistogramVec
	verdicts             *prometheus.CounterVec
	collaboratorFailures *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "truthlens_analysis_duration_seconds",
				Help:    "Time spent in one analysis branch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"content_type"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truthlens_verdicts_total",
				Help: "Analyses completed, by verdict",
			},
			[]string{"verdict"},
		),
		collaboratorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truthlens_collaborator_failures_total",
				Help: "External collaborator calls that degraded to their default result",
			},
			[]string{"collaborator"},
		),
	}
	r.registry.MustRegister(r.analysisDuration, r.verdicts, r.collaboratorFailures)
	return r
}

// ObserveAnalysis is nil-safe so analyzers can run without metrics.
func (r *Recorder) ObserveAnalysis(contentType, verdict string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.analysisDuration.WithLabelValues(contentType).Observe(elapsed.Seconds())
	r.verdicts.WithLabelValues(verdict).Inc()
}

func (r *Recorder) CollaboratorFailed(name string) {
	if r == nil {
		return
	}
	r.collaboratorFailures.WithLabelValues(name).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
