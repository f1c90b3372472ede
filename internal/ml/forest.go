package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

const forestFormat = "forest/v1"

// ForestArtifact is the on-disk form of a tree ensemble exported from a
// trained random forest. Nodes are stored in pre-order: children always have
// a larger index than their parent.
type ForestArtifact struct {
	Format       string       `json:"format"`
	NFeatures    int          `json:"n_features"`
	Trees        []TreeSpec   `json:"trees"`
	Calibration  *Calibration `json:"calibration,omitempty"`
	PredictProba *bool        `json:"predict_proba,omitempty"`
}

type TreeSpec struct {
	Nodes []NodeSpec `json:"nodes"`
}

// NodeSpec is a split (x[Feature] <= Threshold goes Left) or, when Value is
// set, a leaf holding per-class sample weights.
type NodeSpec struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// Calibration is an isotonic regression table mapping the raw ensemble
// probability (X) to a calibrated one (Y).
type Calibration struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// LoadForest reads a forest/v1 JSON artifact.
func LoadForest(path string, _ LoadOptions) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forest artifact: %w", err)
	}
	var art ForestArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode forest artifact: %w", err)
	}
	return NewForest(art)
}

// NewForest validates art and builds a classifier from it. The result
// implements ProbabilityEstimator unless the artifact disables predict_proba.
func NewForest(art ForestArtifact) (Classifier, error) {
	if art.Format != forestFormat {
		return nil, fmt.Errorf("unsupported format %q, want %q", art.Format, forestFormat)
	}
	if art.NFeatures != 3 {
		return nil, fmt.Errorf("artifact expects %d features, want 3", art.NFeatures)
	}
	if len(art.Trees) == 0 {
		return nil, errors.New("artifact has no trees")
	}
	for i, tree := range art.Trees {
		if err := validateTree(tree, art.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	if art.Calibration != nil {
		if err := art.Calibration.validate(); err != nil {
			return nil, fmt.Errorf("calibration: %w", err)
		}
	}

	f := &forest{trees: art.Trees, calibration: art.Calibration}
	if art.PredictProba != nil && !*art.PredictProba {
		return f, nil
	}
	return &probabilisticForest{f}, nil
}

func validateTree(t TreeSpec, nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Value != nil {
			if len(n.Value) != 2 {
				return fmt.Errorf("leaf %d has %d class weights, want 2", i, len(n.Value))
			}
			if n.Value[0] < 0 || n.Value[1] < 0 || n.Value[0]+n.Value[1] <= 0 {
				return fmt.Errorf("leaf %d has invalid weights %v", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, n.Feature)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d has NaN threshold", i)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return nil
}

func (c *Calibration) validate() error {
	if len(c.X) == 0 || len(c.X) != len(c.Y) {
		return fmt.Errorf("x and y must be non-empty and equal length (got %d, %d)", len(c.X), len(c.Y))
	}
	if !sort.Float64sAreSorted(c.X) {
		return errors.New("x must be non-decreasing")
	}
	for _, y := range c.Y {
		if y < 0 || y > 1 || math.IsNaN(y) {
			return fmt.Errorf("y value %v outside [0, 1]", y)
		}
	}
	return nil
}

// apply interpolates linearly between table points and clips at both ends.
func (c *Calibration) apply(p float64) float64 {
	n := len(c.X)
	if p <= c.X[0] {
		return c.Y[0]
	}
	if p >= c.X[n-1] {
		return c.Y[n-1]
	}
	i := sort.SearchFloat64s(c.X, p)
	if c.X[i] == p {
		return c.Y[i]
	}
	x0, x1 := c.X[i-1], c.X[i]
	y0, y1 := c.Y[i-1], c.Y[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (p-x0)*(y1-y0)/(x1-x0)
}

type forest struct {
	trees       []TreeSpec
	calibration *Calibration
}

func (f *forest) Predict(x [3]float64) (int, error) {
	p, err := f.proba(x)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// proba averages the normalized leaf distributions over all trees.
func (f *forest) proba(x [3]float64) (float64, error) {
	for i, v := range x {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("feature %d is NaN", i)
		}
	}
	var sum float64
	for _, t := range f.trees {
		leaf := t.Nodes[0]
		for idx := 0; leaf.Value == nil; leaf = t.Nodes[idx] {
			if x[leaf.Feature] <= leaf.Threshold {
				idx = leaf.Left
			} else {
				idx = leaf.Right
			}
		}
		sum += leaf.Value[1] / (leaf.Value[0] + leaf.Value[1])
	}
	p := sum / float64(len(f.trees))
	if f.calibration != nil {
		p = f.calibration.apply(p)
	}
	return math.Min(1, math.Max(0, p)), nil
}

type probabilisticForest struct {
	*forest
}

func (f *probabilisticForest) PredictProba(x [3]float64) ([2]float64, error) {
	p, err := f.proba(x)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{1 - p, p}, nil
}
