// Package ml provides the wildfire risk classifier for the application.
// It defines the capability contract every loaded model satisfies, the
// process-wide memoized Provider that loads the artifact, and the loaders
// for the supported artifact kinds (native tree ensembles and scikit-learn
// models served through a Python bridge).
//
// Probability estimation is an optional capability: callers ask for it
// through RiskProbability and receive an explicit Unavailable value when the
// model cannot produce one.
package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
)

// Classifier is the minimum capability of a loaded model.
// Predict receives the features in model order and returns the raw class (0 or 1).
type Classifier interface {
	Predict(x [3]float64) (int, error)
}

// ProbabilityEstimator is implemented by classifiers that expose calibrated
// class probabilities [p(LOW), p(MODERATE_HIGH)].
type ProbabilityEstimator interface {
	Classifier
	PredictProba(x [3]float64) ([2]float64, error)
}

// BatchEstimator is implemented by estimators that amortize per-call cost
// (the Python bridge). Sweeps use it when available.
type BatchEstimator interface {
	ProbabilityEstimator
	PredictProbaBatch(xs [][3]float64) ([][2]float64, error)
}

type Label int

const (
	LabelLow          Label = 0
	LabelModerateHigh Label = 1
)

// LabelFromOutput maps a raw model output to a Label. Anything other than 0 or 1 is an error.
func LabelFromOutput(out int) (Label, error) {
	switch out {
	case 0:
		return LabelLow, nil
	case 1:
		return LabelModerateHigh, nil
	}
	return 0, fmt.Errorf("model returned class %d, expected 0 or 1", out)
}

func (l Label) String() string {
	if l == LabelModerateHigh {
		return "MODERATE_HIGH"
	}
	return "LOW"
}

// Display returns the Spanish caption shown to users and written to exports.
func (l Label) Display() string {
	if l == LabelModerateHigh {
		return "MOD/ALTO"
	}
	return "BAJO"
}

func ParseLabel(s string) (Label, error) {
	switch s {
	case "LOW", "BAJO", "0":
		return LabelLow, nil
	case "MODERATE_HIGH", "MOD/ALTO", "1":
		return LabelModerateHigh, nil
	}
	return 0, fmt.Errorf("unknown label %q", s)
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Probability is either an estimate of P(MODERATE_HIGH) in [0,1] or Unavailable.
// The zero value is Unavailable.
type Probability struct {
	value float64
	ok    bool
}

// Unavailable marks a probability the classifier could not provide.
var Unavailable = Probability{}

func Available(p float64) Probability {
	return Probability{value: p, ok: true}
}

func (p Probability) Value() (float64, bool) {
	return p.value, p.ok
}

func (p Probability) IsAvailable() bool {
	return p.ok
}

// String renders the value with the export precision, or the unavailable marker.
func (p Probability) String() string {
	if !p.ok {
		return common.UnavailableMarker
	}
	return strconv.FormatFloat(p.value, 'f', common.ProbabilityPrecision, 64)
}

// Percent renders the probability the way the page shows it ("73.21%").
func (p Probability) Percent() string {
	if !p.ok {
		return "No disponible"
	}
	return fmt.Sprintf("%.2f%%", p.value*100)
}

func ParseProbability(s string) (Probability, error) {
	if s == common.UnavailableMarker {
		return Unavailable, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Unavailable, fmt.Errorf("parse probability %q: %w", s, err)
	}
	if v < 0 || v > 1 || math.IsNaN(v) {
		return Unavailable, fmt.Errorf("probability %v outside [0, 1]", v)
	}
	return Available(v), nil
}

// MarshalJSON encodes Unavailable as null.
func (p Probability) MarshalJSON() ([]byte, error) {
	if !p.ok {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

func (p *Probability) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Unavailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Available(v)
	return nil
}

// Classify runs the classifier on a validated feature vector.
func Classify(clf Classifier, v features.Vector) (Label, error) {
	if clf == nil {
		return 0, errors.New("classifier is nil")
	}
	if err := v.Validate(); err != nil {
		return 0, err
	}
	out, err := clf.Predict(v.Array())
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	return LabelFromOutput(out)
}

// RiskProbability returns P(MODERATE_HIGH), or Unavailable when the classifier
// has no probability capability. A numeric fallback is never substituted.
func RiskProbability(clf Classifier, v features.Vector) (Probability, error) {
	if clf == nil {
		return Unavailable, errors.New("classifier is nil")
	}
	if err := v.Validate(); err != nil {
		return Unavailable, err
	}
	est, ok := clf.(ProbabilityEstimator)
	if !ok {
		return Unavailable, nil
	}
	proba, err := est.PredictProba(v.Array())
	if err != nil {
		return Unavailable, fmt.Errorf("predict_proba: %w", err)
	}
	if err := checkProba(proba); err != nil {
		return Unavailable, err
	}
	return Available(proba[1]), nil
}

// SupportsProbability reports the capability without running the model.
func SupportsProbability(clf Classifier) bool {
	_, ok := clf.(ProbabilityEstimator)
	return ok
}

func checkProba(p [2]float64) error {
	for i, v := range p {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("invalid probability %d: %f", i, v)
		}
	}
	return nil
}
