package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
)

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Algorithm    string    `json:"algorithm"`
	Calibration  string    `json:"calibration"`
	Features     []string  `json:"features"`
	Accuracy     float64   `json:"accuracy"`
	TrainingRows int       `json:"training_rows"`
	Region       string    `json:"region"`
	Description  string    `json:"description"`
}

// loadModelMetadata reads the optional metadata next to the artifact (or at
// explicit). A missing file is not an error; a feature order that differs
// from the one the application sends is.
func loadModelMetadata(modelPath, explicit string) (*ModelMetadata, error) {
	path := explicit
	if path == "" {
		path = filepath.Join(filepath.Dir(modelPath), "model_metadata.json")
	}

	md, err := decodeMetadata(path)
	if err != nil {
		if os.IsNotExist(err) && explicit == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("model metadata %s: %w", path, err)
	}
	if err := checkFeatureOrder(md.Features); err != nil {
		return nil, fmt.Errorf("model metadata %s: %w", path, err)
	}
	return md, nil
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, err
	}
	return &md, nil
}

func checkFeatureOrder(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(features.Order) {
		return fmt.Errorf("model declares %d features, want %d", len(names), len(features.Order))
	}
	for i, name := range names {
		axis, err := features.ParseAxis(name)
		if err != nil {
			return err
		}
		if axis != features.Order[i] {
			return fmt.Errorf("feature %d is %s, want %s", i, axis, features.Order[i])
		}
	}
	return nil
}
