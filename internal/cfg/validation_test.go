package cfg

import (
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ModelPath:          "models/modelo.json",
		HTTPPort:           8501,
		ExportDir:          "exports",
		InferenceTimeout:   5 * time.Second,
		SessionIdleTimeout: 2 * time.Hour,
		SweepSteps:         50,
		HeatmapSteps:       30,
		LogLevel:           "info",
		LogFormat:          "json",
		ShutdownTimeout:    10 * time.Second,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_ZeroIdleTimeoutKeepsSessions(t *testing.T) {
	settings := createValidSettings()
	settings.SessionIdleTimeout = 0

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected zero idle timeout to be accepted, got: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"missing model path", func(s *Settings) { s.ModelPath = "" }},
		{"missing export dir", func(s *Settings) { s.ExportDir = "" }},
		{"privileged port", func(s *Settings) { s.HTTPPort = 443 }},
		{"port overflow", func(s *Settings) { s.HTTPPort = 70000 }},
		{"inference timeout too long", func(s *Settings) { s.InferenceTimeout = 10 * time.Minute }},
		{"negative idle timeout", func(s *Settings) { s.SessionIdleTimeout = -time.Second }},
		{"sweep too coarse", func(s *Settings) { s.SweepSteps = 1 }},
		{"heatmap too fine", func(s *Settings) { s.HeatmapSteps = 201 }},
		{"unknown log level", func(s *Settings) { s.LogLevel = "verbose" }},
		{"shutdown timeout zero", func(s *Settings) { s.ShutdownTimeout = 0 }},
		{"onnx model", func(s *Settings) { s.ModelPath = "model.onnx" }},
		{"model without extension", func(s *Settings) { s.ModelPath = "models/rf" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			if err := validateSettings(settings); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestValidateSettings_PickleModels(t *testing.T) {
	for _, path := range []string{"models/rf.pkl", "models/rf.joblib", "MODELS/RF.JSON"} {
		settings := createValidSettings()
		settings.ModelPath = path
		if err := validateSettings(settings); err != nil {
			t.Errorf("Expected %s to be accepted, got: %v", path, err)
		}
	}
}
