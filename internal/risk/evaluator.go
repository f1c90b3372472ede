package risk

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

// MetricsInterface defines metrics methods needed by the evaluator
type MetricsInterface interface {
	PredictionsInc(label string)
	PredictionFailuresInc()
	ProbabilityObserve(float64)
	ProbabilityUnavailableInc()
	AlertsInc(alert string)
	SweepEvaluationsAdd(n int)
}

// ModelSource hands out the loaded classifier; *ml.Provider satisfies it.
type ModelSource interface {
	Load() (ml.Classifier, error)
}

// Result is one evaluation. Label comes from the classifier only; Alerts come
// from the thresholds only, so the two may disagree.
type Result struct {
	Features    features.Vector `json:"features"`
	Label       ml.Label        `json:"label"`
	Probability ml.Probability  `json:"probability"`
	Alerts      AlertSet        `json:"alerts"`
}

// Evaluate classifies v and attaches its probability and alerts.
func Evaluate(clf ml.Classifier, v features.Vector) (Result, error) {
	if err := v.Validate(); err != nil {
		return Result{}, err
	}
	label, err := ml.Classify(clf, v)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}
	prob, err := ml.RiskProbability(clf, v)
	if err != nil {
		return Result{}, fmt.Errorf("risk probability: %w", err)
	}
	return Result{
		Features:    v,
		Label:       label,
		Probability: prob,
		Alerts:      ComputeAlerts(v),
	}, nil
}

// Evaluator binds evaluations to a model source and reports them to metrics.
type Evaluator struct {
	source  ModelSource
	metrics MetricsInterface
}

func NewEvaluator(source ModelSource, metrics MetricsInterface) *Evaluator {
	return &Evaluator{source: source, metrics: metrics}
}

// Alerts validates v and computes its alerts without touching the model.
func (e *Evaluator) Alerts(v features.Vector) (AlertSet, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return ComputeAlerts(v), nil
}

// Evaluate runs a full evaluation against the loaded model.
// Load failures are returned unchanged so callers can detect *ml.ArtifactLoadError.
func (e *Evaluator) Evaluate(v features.Vector) (Result, error) {
	clf, err := e.source.Load()
	if err != nil {
		return Result{}, err
	}

	res, err := Evaluate(clf, v)
	if err != nil {
		if e.metrics != nil && !errors.Is(err, features.ErrInvalidInput) {
			e.metrics.PredictionFailuresInc()
		}
		return Result{}, err
	}

	if e.metrics != nil {
		e.metrics.PredictionsInc(res.Label.String())
		if p, ok := res.Probability.Value(); ok {
			e.metrics.ProbabilityObserve(p)
		} else {
			e.metrics.ProbabilityUnavailableInc()
		}
		for _, a := range res.Alerts {
			e.metrics.AlertsInc(string(a))
		}
	}

	log.Debug().
		Float64("humidity", v.Humidity).
		Float64("wind_speed", v.WindSpeed).
		Float64("temperature", v.Temperature).
		Str("label", res.Label.String()).
		Str("probability", res.Probability.String()).
		Int("alerts", res.Alerts.Len()).
		Msg("Evaluation completed")

	return res, nil
}

// SweepAxis varies one axis over steps evenly spaced values of its domain.
func (e *Evaluator) SweepAxis(axis features.Axis, fixed features.Vector, steps int) ([]SweepPoint, error) {
	clf, err := e.source.Load()
	if err != nil {
		return nil, err
	}
	grid, err := DefaultGrid(axis, steps)
	if err != nil {
		return nil, err
	}
	points, err := Sweep1D(clf, axis, fixed, grid)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SweepEvaluationsAdd(len(points))
	}
	return points, nil
}

// Heatmap sweeps axisA x axisB over their domains with the third axis fixed.
func (e *Evaluator) Heatmap(axisA, axisB features.Axis, fixed features.Vector, steps int) (*SweepGrid, error) {
	clf, err := e.source.Load()
	if err != nil {
		return nil, err
	}
	gridA, err := DefaultGrid(axisA, steps)
	if err != nil {
		return nil, err
	}
	gridB, err := DefaultGrid(axisB, steps)
	if err != nil {
		return nil, err
	}
	grid, err := Sweep2D(clf, axisA, axisB, fixed, gridA, gridB)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SweepEvaluationsAdd(len(gridA) * len(gridB))
	}
	return grid, nil
}
