package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/cfg"
	"github.com/Danangellotti/app-incendios-cordoba/internal/dashboard"
	"github.com/Danangellotti/app-incendios-cordoba/internal/metrics"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/session"
	"github.com/Danangellotti/app-incendios-cordoba/internal/storage"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	provider := ml.NewProvider(c.ModelPath,
		ml.WithMetrics(mw),
		ml.WithPythonPath(c.PythonPath),
		ml.WithTimeout(c.InferenceTimeout),
		ml.WithMetadataPath(c.MetadataPath),
	)
	loadModel(provider)

	sessions := session.NewManager(clock, c.SessionIdleTimeout, mw)

	opts := dashboard.Options{
		Addr:              c.Addr(),
		Model:             provider,
		Sessions:          sessions,
		Metrics:           mw,
		EvaluationMetrics: mw,
		Gatherer:          prometheus.DefaultGatherer,
		Clock:             clock,
		ExportDir:         c.ExportDir,
		SweepSteps:        c.SweepSteps,
		HeatmapSteps:      c.HeatmapSteps,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
	if store := initializeStorage(c); store != nil {
		defer store.Close()
		opts.Archive = store
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions.Run(ctx)
	}()

	d := dashboard.New(opts)
	if err := d.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start dashboard")
	}

	waitForShutdown(ctx, cancel, &wg, d, c.ShutdownTimeout)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// loadModel warms the provider. The provider logs a failure itself; the page
// still serves alerts and shows the load error.
func loadModel(provider *ml.Provider) {
	if _, err := provider.Load(); err != nil {
		return
	}
	ev := log.Info().Str("path", provider.Path())
	if md := provider.Metadata(); md != nil {
		ev = ev.Str("version", md.Version).Str("algorithm", md.Algorithm)
	}
	ev.Msg("model loaded")
}

// initializeStorage opens the export archive if ARCHIVE_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.ArchivePath == "" {
		return nil
	}
	store, err := storage.New(c.ArchivePath)
	if err != nil {
		log.Warn().Err(err).Msg("archive initialization failed, continuing without export archive")
		return nil
	}
	return store
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, d *dashboard.Dashboard, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	if err := d.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("dashboard shutdown failed")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(timeout):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
