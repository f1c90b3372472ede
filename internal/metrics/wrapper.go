package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the model,
// evaluation, session and dashboard packages declare, so none of them
// imports Prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Metrics returns the underlying collectors.
func (w *MetricsWrapper) Metrics() *Metrics {
	return w.m
}

func (w *MetricsWrapper) MLModelLoadedSet(loaded bool) {
	if loaded {
		w.m.MLModelLoaded.Set(1)
		return
	}
	w.m.MLModelLoaded.Set(0)
}

func (w *MetricsWrapper) MLModelAgeSet(v float64) {
	w.m.MLModelAge.Set(v)
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLTimeoutsInc() {
	w.m.MLTimeouts.Inc()
}

func (w *MetricsWrapper) PredictionsInc(label string) {
	w.m.PredictionsTotal.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) ProbabilityObserve(p float64) {
	w.m.ProbabilityScores.Observe(p)
}

func (w *MetricsWrapper) ProbabilityUnavailableInc() {
	w.m.ProbabilityUnavailable.Inc()
}

func (w *MetricsWrapper) AlertsInc(alert string) {
	w.m.AlertsTotal.WithLabelValues(alert).Inc()
}

func (w *MetricsWrapper) SweepEvaluationsAdd(n int) {
	w.m.SweepEvaluations.Add(float64(n))
}

func (w *MetricsWrapper) ActiveSessionsSet(v float64) {
	w.m.ActiveSessions.Set(v)
}

func (w *MetricsWrapper) HistoryClearsInc() {
	w.m.HistoryClears.Inc()
}

// ExportsInc counts an export; outcome is "ok" or "error".
func (w *MetricsWrapper) ExportsInc(outcome string) {
	w.m.ExportsTotal.WithLabelValues(outcome).Inc()
}

func (w *MetricsWrapper) HTTPRequestObserve(method, route string, status int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	w.m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}
