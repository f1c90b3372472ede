package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/client"
	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

var rootCmd = &cobra.Command{
	Use:           "riskctl",
	Short:         "Wildfire risk classifier from the command line",
	Long:          "riskctl evaluates humidity, wind and temperature readings with a local model artifact, or against a running dashboard with --server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("model", "", "Path to the model artifact (overrides MODEL_PATH)")
	pf.String("metadata", "", "Path to the model metadata file")
	pf.String("python", "", "Python interpreter for pickled models (overrides PYTHON_PATH)")
	pf.Duration("timeout", 5*time.Second, "Inference timeout (local) or HTTP timeout (--server)")
	pf.String("server", "", "Base URL of a running dashboard, e.g. http://localhost:8501")
	pf.String("session", "", "Dashboard session id to reuse with --server")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.Bool("json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(historyCmd)
}

func setupLogging(cmd *cobra.Command) error {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", raw, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

// backend is what the commands need, served either by a local model or by a
// remote dashboard.
type backend interface {
	Evaluate(v features.Vector) (risk.Result, error)
	Alerts(v features.Vector) (risk.AlertSet, error)
	Sweep(axis features.Axis, fixed features.Vector, steps int) ([]risk.SweepPoint, error)
	Heatmap(axisA, axisB features.Axis, fixed features.Vector, steps int) (*risk.SweepGrid, error)
}

type localBackend struct {
	*risk.Evaluator
	provider *ml.Provider
}

func (b *localBackend) Sweep(axis features.Axis, fixed features.Vector, steps int) ([]risk.SweepPoint, error) {
	return b.SweepAxis(axis, fixed, steps)
}

type remoteBackend struct {
	*client.Client
}

func (b *remoteBackend) Evaluate(v features.Vector) (risk.Result, error) {
	pred, err := b.Predict(v)
	if err != nil {
		return risk.Result{}, err
	}
	return pred.Result, nil
}

func serverURL(cmd *cobra.Command) string {
	s, _ := cmd.Flags().GetString("server")
	return s
}

func newRemote(cmd *cobra.Command) *client.Client {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	c := client.New(serverURL(cmd), timeout)
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		c.SetSession(id)
	}
	return c
}

func newProvider(cmd *cobra.Command) *ml.Provider {
	path, _ := cmd.Flags().GetString("model")
	if path == "" {
		path = envOr(common.EnvModelPath, common.DefaultModelPath)
	}
	python, _ := cmd.Flags().GetString("python")
	if python == "" {
		python = os.Getenv(common.EnvPythonPath)
	}
	metadata, _ := cmd.Flags().GetString("metadata")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	return ml.NewProvider(path,
		ml.WithPythonPath(python),
		ml.WithTimeout(timeout),
		ml.WithMetadataPath(metadata),
	)
}

func newBackend(cmd *cobra.Command) backend {
	if serverURL(cmd) != "" {
		return &remoteBackend{Client: newRemote(cmd)}
	}
	provider := newProvider(cmd)
	return &localBackend{Evaluator: risk.NewEvaluator(provider, nil), provider: provider}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func jsonOutput(cmd *cobra.Command) bool {
	b, _ := cmd.Flags().GetBool("json")
	return b
}

// addVectorFlags registers the three inputs with the slider defaults.
func addVectorFlags(cmd *cobra.Command) {
	def := features.Default()
	cmd.Flags().Float64("humidity", def.Humidity, "Relative humidity (%)")
	cmd.Flags().Float64("wind", def.WindSpeed, "Wind speed (km/h)")
	cmd.Flags().Float64("temperature", def.Temperature, "Temperature (°C)")
}

func vectorFlags(cmd *cobra.Command) (features.Vector, error) {
	h, _ := cmd.Flags().GetFloat64("humidity")
	w, _ := cmd.Flags().GetFloat64("wind")
	t, _ := cmd.Flags().GetFloat64("temperature")
	v := features.New(h, w, t)
	return v, v.Validate()
}
