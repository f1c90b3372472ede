package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

// ErrInvalidGrid reports a sweep request whose shape cannot be evaluated:
// an unknown axis, a step count out of range or a repeated axis.
var ErrInvalidGrid = errors.New("invalid sweep grid")

// SweepPoint is one sample of a one-dimensional sweep.
type SweepPoint struct {
	Value       float64        `json:"value"`
	Probability ml.Probability `json:"probability"`
}

// SweepGrid is the result of a two-dimensional sweep.
// Cells[i][j] is the probability at (ValuesA[i], ValuesB[j]); an Unavailable
// cell is a hole and is rendered as such.
type SweepGrid struct {
	AxisA   features.Axis      `json:"axis_a"`
	AxisB   features.Axis      `json:"axis_b"`
	Fixed   features.Vector    `json:"fixed"`
	ValuesA []float64          `json:"values_a"`
	ValuesB []float64          `json:"values_b"`
	Cells   [][]ml.Probability `json:"cells"`
}

// Holes counts the cells without a probability.
func (g *SweepGrid) Holes() int {
	n := 0
	for _, row := range g.Cells {
		for _, c := range row {
			if !c.IsAvailable() {
				n++
			}
		}
	}
	return n
}

// Linspace returns n evenly spaced values from min to max inclusive.
func Linspace(min, max float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{min}
	}
	out := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range out {
		out[i] = min + float64(i)*step
	}
	out[n-1] = max
	return out
}

// DefaultGrid spans the whole domain of the axis.
func DefaultGrid(axis features.Axis, steps int) ([]float64, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("%w: unknown axis %d", ErrInvalidGrid, int(axis))
	}
	if steps < common.MinGridSteps || steps > common.MaxGridSteps {
		return nil, fmt.Errorf("%w: steps %d outside [%d, %d]", ErrInvalidGrid, steps, common.MinGridSteps, common.MaxGridSteps)
	}
	min, max := axis.Domain()
	return Linspace(min, max, steps), nil
}

// Sweep1D evaluates the risk probability while axis takes each grid value and
// the other two inputs stay at fixed. Every point is Unavailable when the
// classifier cannot estimate probabilities.
func Sweep1D(clf ml.Classifier, axis features.Axis, fixed features.Vector, grid []float64) ([]SweepPoint, error) {
	if clf == nil {
		return nil, errors.New("classifier is nil")
	}
	rows, err := sweepRows(fixed, axis, grid)
	if err != nil {
		return nil, err
	}
	probs, err := probabilities(clf, rows)
	if err != nil {
		return nil, err
	}
	points := make([]SweepPoint, len(grid))
	for i, value := range grid {
		points[i] = SweepPoint{Value: value, Probability: probs[i]}
	}
	return points, nil
}

// Sweep2D evaluates every (a, b) pair of gridA x gridB with the remaining
// axis taken from fixed.
func Sweep2D(clf ml.Classifier, axisA, axisB features.Axis, fixed features.Vector, gridA, gridB []float64) (*SweepGrid, error) {
	if clf == nil {
		return nil, errors.New("classifier is nil")
	}
	if axisA == axisB {
		return nil, fmt.Errorf("%w: axes must differ, got %s twice", ErrInvalidGrid, axisA)
	}
	if err := fixed.Validate(); err != nil {
		return nil, err
	}
	for _, value := range gridA {
		if err := features.CheckAxis(axisA, value); err != nil {
			return nil, err
		}
	}

	rows := make([]features.Vector, 0, len(gridA)*len(gridB))
	for _, a := range gridA {
		base := fixed.With(axisA, a)
		sub, err := sweepRows(base, axisB, gridB)
		if err != nil {
			return nil, err
		}
		rows = append(rows, sub...)
	}

	probs, err := probabilities(clf, rows)
	if err != nil {
		return nil, err
	}

	cells := make([][]ml.Probability, len(gridA))
	for i := range gridA {
		cells[i] = probs[i*len(gridB) : (i+1)*len(gridB)]
	}

	return &SweepGrid{
		AxisA:   axisA,
		AxisB:   axisB,
		Fixed:   fixed,
		ValuesA: append([]float64(nil), gridA...),
		ValuesB: append([]float64(nil), gridB...),
		Cells:   cells,
	}, nil
}

func sweepRows(fixed features.Vector, axis features.Axis, grid []float64) ([]features.Vector, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("%w: unknown axis %d", ErrInvalidGrid, int(axis))
	}
	if err := fixed.Validate(); err != nil {
		return nil, err
	}
	rows := make([]features.Vector, len(grid))
	for i, value := range grid {
		if err := features.CheckAxis(axis, value); err != nil {
			return nil, err
		}
		rows[i] = fixed.With(axis, value)
	}
	return rows, nil
}

// probabilities runs the model over rows, batching when the classifier
// supports it.
func probabilities(clf ml.Classifier, rows []features.Vector) ([]ml.Probability, error) {
	out := make([]ml.Probability, len(rows))
	if len(rows) == 0 || !ml.SupportsProbability(clf) {
		return out, nil
	}

	if batch, ok := clf.(ml.BatchEstimator); ok {
		xs := make([][3]float64, len(rows))
		for i, r := range rows {
			xs[i] = r.Array()
		}
		probas, err := batch.PredictProbaBatch(xs)
		if err != nil {
			return nil, fmt.Errorf("predict_proba batch: %w", err)
		}
		if len(probas) != len(rows) {
			return nil, fmt.Errorf("expected %d probability rows, got %d", len(rows), len(probas))
		}
		for i, p := range probas {
			if p[1] < 0 || p[1] > 1 || math.IsNaN(p[1]) {
				return nil, fmt.Errorf("invalid probability at row %d: %f", i, p[1])
			}
			out[i] = ml.Available(p[1])
		}
		return out, nil
	}

	for i, r := range rows {
		p, err := ml.RiskProbability(clf, r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
