package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Analyses      *prometheus.CounterVec
	Severity      prometheus.Histogram
	WeatherFetch  *prometheus.CounterVec
	SprayRuns     *prometheus.CounterVec
	OverlayExport *prometheus.CounterVec
}

// New registers the collectors on reg. Pass a fresh registry in tests to keep
// them isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agroaid",
			Name:      "analyses_total",
			Help:      "Leaf analyses by recommended action.",
		}, []string{"action"}),
		Severity: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agroaid",
			Name:      "infection_severity_percent",
			Help:      "Estimated infection severity of analysed leaves.",
			Buckets:   []float64{10, 30, 60, 100},
		}),
		WeatherFetch: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agroaid",
			Name:      "weather_fetches_total",
			Help:      "Weather fetches by outcome (available, unavailable, error).",
		}, []string{"outcome"}),
		SprayRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agroaid",
			Name:      "spray_runs_total",
			Help:      "Simulated spray runs by outcome (completed, cancelled).",
		}, []string{"outcome"}),
		OverlayExport: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agroaid",
			Name:      "overlay_exports_total",
			Help:      "Overlay uploads to object storage by outcome.",
		}, []string{"outcome"}),
	}
}
