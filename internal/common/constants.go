package common

// Environment variable keys
const (
	EnvConfigFile         = "CONFIG_FILE"
	EnvModelPath          = "MODEL_PATH"
	EnvMetadataPath       = "MODEL_METADATA_PATH"
	EnvHTTPPort           = "HTTP_PORT"
	EnvExportDir          = "EXPORT_DIR"
	EnvArchivePath        = "ARCHIVE_PATH"
	EnvPythonPath         = "PYTHON_PATH"
	EnvInferenceTimeout   = "INFERENCE_TIMEOUT"
	EnvSessionIdleTimeout = "SESSION_IDLE_TIMEOUT"
	EnvSweepSteps         = "SWEEP_STEPS"
	EnvHeatmapSteps       = "HEATMAP_STEPS"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvShutdownTimeout    = "SHUTDOWN_TIMEOUT"
)

// Configuration defaults
const (
	DefaultModelPath          = "models/modelo_rf_calibrado_completo.json"
	DefaultHTTPPort           = 8501
	DefaultExportDir          = "exports"
	DefaultInferenceTimeout   = "5s"
	DefaultSessionIdleTimeout = "2h"
	DefaultSweepSteps         = 50
	DefaultHeatmapSteps       = 30
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultShutdownTimeout    = "10s"
)

// Feature domains enforced by the input widgets.
const (
	MinHumidity    = 20.0
	MaxHumidity    = 100.0
	MinWindSpeed   = 0.0
	MaxWindSpeed   = 40.0
	MinTemperature = 0.0
	MaxTemperature = 45.0
)

// Slider starting positions.
const (
	DefaultHumidity    = 50.0
	DefaultWindSpeed   = 15.0
	DefaultTemperature = 25.0
)

// Reference thresholds for qualitative alerts.
const (
	HumidityFloor      = 40.0 // below is critical
	TemperatureCeiling = 30.0 // above is high
	WindCeiling        = 25.0 // above is strong
)

// Export format
const (
	ExportFilePrefix      = "historial_predicciones"
	ExportTimestampLayout = "2006-01-02 15:04:05 -07:00"
	LegacyTimestampLayout = "2006-01-02 15:04:05"
	ExportFileTimeLayout  = "20060102_150405"
	ProbabilityPrecision  = 4
	UnavailableMarker     = "unavailable"
)

// Validation constants
const (
	MinHTTPPort  = 1024
	MaxHTTPPort  = 65535
	MinGridSteps = 2
	MaxGridSteps = 200
)

// Session cookie
const (
	SessionCookieName = "incendios_session"
)
