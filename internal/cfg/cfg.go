package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
)

type Settings struct {
	ModelPath          string        `validate:"required"`
	MetadataPath       string        // optional, defaults to model_metadata.json next to the model
	HTTPPort           int           `validate:"min=1024,max=65535"`
	ExportDir          string        `validate:"required"`
	ArchivePath        string        // optional bbolt archive of exports
	PythonPath         string        // optional, only for .pkl/.joblib models
	InferenceTimeout   time.Duration `validate:"min=100ms,max=2m"`
	SessionIdleTimeout time.Duration `validate:"min=0s,max=720h"`
	SweepSteps         int           `validate:"min=2,max=200"`
	HeatmapSteps       int           `validate:"min=2,max=200"`
	LogLevel           string        `validate:"oneof=trace debug info warn error"`
	LogFormat          string        `validate:"oneof=json console"`
	ShutdownTimeout    time.Duration `validate:"min=1s,max=5m"`
}

type ConfigFile struct {
	Model struct {
		Path             string `yaml:"path"`
		MetadataPath     string `yaml:"metadataPath"`
		PythonPath       string `yaml:"pythonPath"`
		InferenceTimeout string `yaml:"inferenceTimeout"`
	} `yaml:"model"`

	Server struct {
		Port               int    `yaml:"port"`
		ShutdownTimeout    string `yaml:"shutdownTimeout"`
		SessionIdleTimeout string `yaml:"sessionIdleTimeout"`
	} `yaml:"server"`

	Export struct {
		Dir         string `yaml:"dir"`
		ArchivePath string `yaml:"archivePath"`
	} `yaml:"export"`

	Charts struct {
		SweepSteps   int `yaml:"sweepSteps"`
		HeatmapSteps int `yaml:"heatmapSteps"`
	} `yaml:"charts"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment when it is unset. A .env file in the working directory is
// loaded first; it never overrides variables already set.
func Load() (Settings, error) {
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	inferenceTimeout, err := parseDurationOrDefault(config.Model.InferenceTimeout, common.DefaultInferenceTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("model.inferenceTimeout: %w", err)
	}
	idleTimeout, err := parseDurationOrDefault(config.Server.SessionIdleTimeout, common.DefaultSessionIdleTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.sessionIdleTimeout: %w", err)
	}
	shutdownTimeout, err := parseDurationOrDefault(config.Server.ShutdownTimeout, common.DefaultShutdownTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.shutdownTimeout: %w", err)
	}

	// Environment variables override the file
	settings := Settings{
		ModelPath:          getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		MetadataPath:       getEnvOrDefault(common.EnvMetadataPath, config.Model.MetadataPath),
		HTTPPort:           getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.Port, common.DefaultHTTPPort),
		ExportDir:          getEnvOrDefault(common.EnvExportDir, orDefault(config.Export.Dir, common.DefaultExportDir)),
		ArchivePath:        getEnvOrDefault(common.EnvArchivePath, config.Export.ArchivePath),
		PythonPath:         getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		InferenceTimeout:   getDurationOrDefault(common.EnvInferenceTimeout, inferenceTimeout),
		SessionIdleTimeout: getDurationOrDefault(common.EnvSessionIdleTimeout, idleTimeout),
		SweepSteps:         getIntFromEnvOrConfig(common.EnvSweepSteps, config.Charts.SweepSteps, common.DefaultSweepSteps),
		HeatmapSteps:       getIntFromEnvOrConfig(common.EnvHeatmapSteps, config.Charts.HeatmapSteps, common.DefaultHeatmapSteps),
		LogLevel:           strings.ToLower(getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel))),
		LogFormat:          strings.ToLower(getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat))),
		ShutdownTimeout:    getDurationOrDefault(common.EnvShutdownTimeout, shutdownTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPath:          getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		MetadataPath:       os.Getenv(common.EnvMetadataPath), // optional
		HTTPPort:           getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		ExportDir:          getEnvOrDefault(common.EnvExportDir, common.DefaultExportDir),
		ArchivePath:        os.Getenv(common.EnvArchivePath), // optional
		PythonPath:         os.Getenv(common.EnvPythonPath),  // optional
		InferenceTimeout:   getDurationOrDefault(common.EnvInferenceTimeout, mustDuration(common.DefaultInferenceTimeout)),
		SessionIdleTimeout: getDurationOrDefault(common.EnvSessionIdleTimeout, mustDuration(common.DefaultSessionIdleTimeout)),
		SweepSteps:         getIntOrDefault(common.EnvSweepSteps, common.DefaultSweepSteps),
		HeatmapSteps:       getIntOrDefault(common.EnvHeatmapSteps, common.DefaultHeatmapSteps),
		LogLevel:           strings.ToLower(getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel)),
		LogFormat:          strings.ToLower(getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat)),
		ShutdownTimeout:    getDurationOrDefault(common.EnvShutdownTimeout, mustDuration(common.DefaultShutdownTimeout)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Addr is the listen address of the dashboard.
func (s *Settings) Addr() string {
	return fmt.Sprintf(":%d", s.HTTPPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func parseDurationOrDefault(v, defaultValue string) (time.Duration, error) {
	if v == "" {
		v = defaultValue
	}
	return time.ParseDuration(v)
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default duration %q: %v", v, err))
	}
	return d
}

func orDefault(v, defaultValue string) string {
	if v == "" {
		return defaultValue
	}
	return v
}

var validate = validator.New()

// validateSettings checks struct tags, then the rules tags cannot express.
func validateSettings(settings *Settings) error {
	if err := validate.Struct(settings); err != nil {
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(settings.ModelPath)); ext {
	case ".json", ".pkl", ".joblib":
	default:
		return fmt.Errorf("model path %s: unsupported artifact extension %q (want .json, .pkl or .joblib)", settings.ModelPath, ext)
	}

	if settings.ArchivePath != "" && filepath.Ext(settings.ArchivePath) == "" {
		return fmt.Errorf("archive path %s must name a database file, not a directory", settings.ArchivePath)
	}

	return nil
}
