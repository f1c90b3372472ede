package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu         sync.Mutex
	loaded     bool
	loadedSets int
	modelAge   float64
	latencySum float64
	latencyObs int
	failures   int
	timeouts   int
}

func (m *MockMetrics) MLModelLoadedSet(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = loaded
	m.loadedSets++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyObs++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

// LabelFunc adapts a function to a label-only Classifier.
type LabelFunc func(x [3]float64) (int, error)

func (f LabelFunc) Predict(x [3]float64) (int, error) { return f(x) }

// ProbaFunc adapts a function to a ProbabilityEstimator; the label is
// MODERATE_HIGH when p[1] > 0.5.
type ProbaFunc func(x [3]float64) ([2]float64, error)

func (f ProbaFunc) Predict(x [3]float64) (int, error) {
	p, err := f(x)
	if err != nil {
		return 0, err
	}
	if p[1] > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (f ProbaFunc) PredictProba(x [3]float64) ([2]float64, error) { return f(x) }

// HeuristicProba is a deterministic stand-in model: risk rises with heat and
// wind and falls with humidity. Useful for tests and demos.
func HeuristicProba(x [3]float64) ([2]float64, error) {
	h, w, t := x[0], x[1], x[2]
	score := 0.5 - (h-50)/100 + (t-25)/50 + (w-15)/80
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return [2]float64{1 - score, score}, nil
}
