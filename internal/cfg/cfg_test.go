package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvKeys = []string{
	"CONFIG_FILE", "MODEL_PATH", "MODEL_METADATA_PATH", "HTTP_PORT", "EXPORT_DIR",
	"ARCHIVE_PATH", "PYTHON_PATH", "INFERENCE_TIMEOUT", "SESSION_IDLE_TIMEOUT",
	"SWEEP_STEPS", "HEATMAP_STEPS", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
}

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "models/modelo_rf_calibrado_completo.json" {
					t.Errorf("expected default ModelPath, got %s", settings.ModelPath)
				}
				if settings.HTTPPort != 8501 {
					t.Errorf("expected default HTTPPort 8501, got %d", settings.HTTPPort)
				}
				if settings.InferenceTimeout != 5*time.Second {
					t.Errorf("expected default InferenceTimeout 5s, got %v", settings.InferenceTimeout)
				}
				if settings.SessionIdleTimeout != 2*time.Hour {
					t.Errorf("expected default SessionIdleTimeout 2h, got %v", settings.SessionIdleTimeout)
				}
				if settings.SweepSteps != 50 || settings.HeatmapSteps != 30 {
					t.Errorf("expected default grid steps 50/30, got %d/%d", settings.SweepSteps, settings.HeatmapSteps)
				}
				if settings.LogLevel != "info" || settings.LogFormat != "json" {
					t.Errorf("expected info/json logging, got %s/%s", settings.LogLevel, settings.LogFormat)
				}
				if settings.ArchivePath != "" {
					t.Errorf("expected archive disabled by default, got %s", settings.ArchivePath)
				}
				if settings.Addr() != ":8501" {
					t.Errorf("expected addr :8501, got %s", settings.Addr())
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"MODEL_PATH":           "/srv/models/rf.joblib",
				"PYTHON_PATH":          "/opt/venv/bin/python3",
				"HTTP_PORT":            "9090",
				"EXPORT_DIR":           "/tmp/exports",
				"ARCHIVE_PATH":         "/var/lib/incendios/exports.db",
				"INFERENCE_TIMEOUT":    "10s",
				"SESSION_IDLE_TIMEOUT": "30m",
				"SWEEP_STEPS":          "100",
				"LOG_LEVEL":            "DEBUG",
				"LOG_FORMAT":           "console",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "/srv/models/rf.joblib" {
					t.Errorf("expected ModelPath override, got %s", settings.ModelPath)
				}
				if settings.PythonPath != "/opt/venv/bin/python3" {
					t.Errorf("expected PythonPath override, got %s", settings.PythonPath)
				}
				if settings.HTTPPort != 9090 {
					t.Errorf("expected HTTPPort 9090, got %d", settings.HTTPPort)
				}
				if settings.InferenceTimeout != 10*time.Second {
					t.Errorf("expected InferenceTimeout 10s, got %v", settings.InferenceTimeout)
				}
				if settings.SessionIdleTimeout != 30*time.Minute {
					t.Errorf("expected SessionIdleTimeout 30m, got %v", settings.SessionIdleTimeout)
				}
				if settings.SweepSteps != 100 {
					t.Errorf("expected SweepSteps 100, got %d", settings.SweepSteps)
				}
				if settings.LogLevel != "debug" {
					t.Errorf("expected lower-cased log level, got %s", settings.LogLevel)
				}
			},
		},
		{
			name:    "port below range",
			envVars: map[string]string{"HTTP_PORT": "80"},
			wantErr: true,
		},
		{
			name:    "unsupported model extension",
			envVars: map[string]string{"MODEL_PATH": "model.onnx"},
			wantErr: true,
		},
		{
			name:    "grid too large",
			envVars: map[string]string{"HEATMAP_STEPS": "1000"},
			wantErr: true,
		},
		{
			name:    "unknown log format",
			envVars: map[string]string{"LOG_FORMAT": "xml"},
			wantErr: true,
		},
		{
			name:    "inference timeout too short",
			envVars: map[string]string{"INFERENCE_TIMEOUT": "1ms"},
			wantErr: true,
		},
		{
			name:    "archive path is a directory",
			envVars: map[string]string{"ARCHIVE_PATH": "/var/lib/incendios/"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)

	configContent := `
model:
  path: "models/rf.json"
  metadataPath: "models/meta.json"
  inferenceTimeout: "3s"
server:
  port: 8600
  shutdownTimeout: "20s"
  sessionIdleTimeout: "1h"
export:
  dir: "out"
  archivePath: "data/exports.db"
charts:
  sweepSteps: 40
  heatmapSteps: 25
logging:
  level: "warn"
  format: "console"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("HTTP_PORT", "8700") // env overrides the file

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if settings.ModelPath != "models/rf.json" {
		t.Errorf("expected ModelPath from file, got %s", settings.ModelPath)
	}
	if settings.MetadataPath != "models/meta.json" {
		t.Errorf("expected MetadataPath from file, got %s", settings.MetadataPath)
	}
	if settings.HTTPPort != 8700 {
		t.Errorf("expected env to override port, got %d", settings.HTTPPort)
	}
	if settings.InferenceTimeout != 3*time.Second {
		t.Errorf("expected InferenceTimeout 3s, got %v", settings.InferenceTimeout)
	}
	if settings.ShutdownTimeout != 20*time.Second {
		t.Errorf("expected ShutdownTimeout 20s, got %v", settings.ShutdownTimeout)
	}
	if settings.SessionIdleTimeout != time.Hour {
		t.Errorf("expected SessionIdleTimeout 1h, got %v", settings.SessionIdleTimeout)
	}
	if settings.ExportDir != "out" || settings.ArchivePath != "data/exports.db" {
		t.Errorf("unexpected export settings: %s %s", settings.ExportDir, settings.ArchivePath)
	}
	if settings.SweepSteps != 40 || settings.HeatmapSteps != 25 {
		t.Errorf("unexpected grid steps %d/%d", settings.SweepSteps, settings.HeatmapSteps)
	}
	if settings.LogLevel != "warn" || settings.LogFormat != "console" {
		t.Errorf("unexpected logging %s/%s", settings.LogLevel, settings.LogFormat)
	}
}

func TestLoadFromYAML_DefaultsForMissingSections(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if settings.HTTPPort != 8501 {
		t.Errorf("expected default port, got %d", settings.HTTPPort)
	}
	if settings.ExportDir != "exports" {
		t.Errorf("expected default export dir, got %s", settings.ExportDir)
	}
	if settings.HeatmapSteps != 30 {
		t.Errorf("expected default heatmap steps, got %d", settings.HeatmapSteps)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "model: [unclosed"},
		{"bad duration", "model:\n  inferenceTimeout: soon\n"},
		{"invalid port", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			t.Setenv("CONFIG_FILE", configPath)

			if _, err := Load(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}
