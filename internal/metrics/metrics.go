// Package metrics provides Prometheus metrics collection for the wildfire risk
// dashboard. It defines the model, evaluation, history and HTTP metrics that
// are exposed via the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	PredictionsTotal       *prometheus.CounterVec // Predictions by label
	PredictionFailures     prometheus.Counter     // Predictions that failed inside the model
	ProbabilityUnavailable prometheus.Counter     // Predictions made without a probability
	ProbabilityScores      prometheus.Histogram   // Distribution of P(MODERATE_HIGH)
	AlertsTotal            *prometheus.CounterVec // Threshold alerts raised by kind
	SweepEvaluations       prometheus.Counter     // Grid points evaluated by sensitivity sweeps

	// Model metrics
	MLModelLoaded prometheus.Gauge     // 1 when the artifact loaded, 0 when it failed
	MLModelAge    prometheus.Gauge     // Age of the model artifact in seconds
	MLLatency     prometheus.Histogram // Model call latency in seconds
	MLFailures    prometheus.Counter   // Model calls that returned an error
	MLTimeouts    prometheus.Counter   // Python bridge calls that timed out

	// History and session metrics
	HistoryClears  prometheus.Counter     // Explicit clear-all actions
	ExportsTotal   *prometheus.CounterVec // Exports by outcome
	ActiveSessions prometheus.Gauge       // Sessions currently held in memory

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec   // Requests by route and status
	HTTPRequestDuration *prometheus.HistogramVec // Request duration by route
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_predictions_total",
			Help: "Total number of risk predictions by label",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_prediction_failures_total",
			Help: "Total number of predictions that failed inside the model",
		}),
		ProbabilityUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_probability_unavailable_total",
			Help: "Total number of predictions made without a probability estimate",
		}),
		ProbabilityScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_probability",
			Help:    "Distribution of the estimated probability of moderate/high risk",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_alerts_total",
			Help: "Total number of threshold alerts raised by predictions",
		}, []string{"alert"}),
		SweepEvaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "risk_sweep_evaluations_total",
			Help: "Total number of grid points evaluated by sensitivity sweeps",
		}),
		MLModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_loaded",
			Help: "Whether the model artifact loaded successfully",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the current model artifact in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Model call latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of model calls that returned an error",
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of model bridge timeouts",
		}),
		HistoryClears: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_clears_total",
			Help: "Total number of prediction history clears",
		}),
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "history_exports_total",
			Help: "Total number of prediction history exports by outcome",
		}, []string{"outcome"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of sessions currently held in memory",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"route"}),
	}
}
