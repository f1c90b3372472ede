package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the model layer
type MetricsInterface interface {
	MLModelLoadedSet(loaded bool)
	MLModelAgeSet(float64)
	MLLatencyObserve(float64)
	MLFailuresInc()
	MLTimeoutsInc()
}

// ArtifactLoadError reports a missing, unreadable or invalid model artifact.
// It is fatal for prediction: the Provider caches it and never retries.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// Loader deserializes an artifact into a Classifier.
type Loader func(path string, opts LoadOptions) (Classifier, error)

// LoadOptions carries loader settings that only some artifact kinds use.
type LoadOptions struct {
	PythonPath string
	Timeout    time.Duration
	Metrics    MetricsInterface
}

// Provider loads the classifier artifact at most once per process and hands
// the same instance to every caller.
type Provider struct {
	path         string
	metadataPath string
	opts         LoadOptions
	loader       Loader
	metrics      MetricsInterface

	once     sync.Once
	clf      Classifier
	metadata *ModelMetadata
	err      error
	loads    atomic.Int32
	loadedAt time.Time
}

type Option func(*Provider)

// WithLoader overrides extension-based loader selection.
func WithLoader(l Loader) Option {
	return func(p *Provider) { p.loader = l }
}

func WithMetrics(m MetricsInterface) Option {
	return func(p *Provider) {
		p.metrics = m
		p.opts.Metrics = m
	}
}

func WithPythonPath(path string) Option {
	return func(p *Provider) { p.opts.PythonPath = path }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.opts.Timeout = d }
}

// WithMetadataPath points at a metadata file outside the artifact directory.
func WithMetadataPath(path string) Option {
	return func(p *Provider) { p.metadataPath = path }
}

func NewProvider(path string, opts ...Option) *Provider {
	p := &Provider{
		path: path,
		opts: LoadOptions{Timeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Load returns the process-wide classifier, deserializing it on first use.
// A failed load is memoized too, so later calls report the same
// *ArtifactLoadError without touching the disk again.
func (p *Provider) Load() (Classifier, error) {
	p.once.Do(p.load)
	return p.clf, p.err
}

// Err returns the cached load error, loading first if needed.
func (p *Provider) Err() error {
	_, err := p.Load()
	return err
}

func (p *Provider) Path() string { return p.path }

// LoadedAt is zero until a load succeeds.
func (p *Provider) LoadedAt() time.Time {
	p.once.Do(p.load)
	return p.loadedAt
}

// Metadata returns the optional metadata found next to the artifact.
func (p *Provider) Metadata() *ModelMetadata {
	p.once.Do(p.load)
	return p.metadata
}

// LoadCount reports how many times the loader ran (0 or 1).
func (p *Provider) LoadCount() int {
	return int(p.loads.Load())
}

func (p *Provider) load() {
	p.loads.Add(1)
	start := time.Now()

	clf, md, err := p.loadArtifact()
	if err != nil {
		var loadErr *ArtifactLoadError
		if !errors.As(err, &loadErr) {
			err = &ArtifactLoadError{Path: p.path, Err: err}
		}
		p.err = err
		if p.metrics != nil {
			p.metrics.MLModelLoadedSet(false)
		}
		log.Error().Err(err).Str("model_path", p.path).Msg("Model artifact could not be loaded, predictions disabled")
		return
	}

	p.clf = instrument(clf, p.metrics)
	p.metadata = md
	p.loadedAt = time.Now()

	if p.metrics != nil {
		p.metrics.MLModelLoadedSet(true)
		if info, err := os.Stat(p.path); err == nil {
			p.metrics.MLModelAgeSet(time.Since(info.ModTime()).Seconds())
		}
	}

	ev := log.Info().
		Str("model_path", p.path).
		Bool("predict_proba", SupportsProbability(clf)).
		Dur("load_time", time.Since(start))
	if md != nil {
		ev = ev.Str("model_version", md.Version)
	}
	ev.Msg("Model loaded successfully")
}

func (p *Provider) loadArtifact() (Classifier, *ModelMetadata, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &ArtifactLoadError{Path: p.path, Err: fmt.Errorf("file not found: %w", err)}
		}
		return nil, nil, &ArtifactLoadError{Path: p.path, Err: err}
	}
	if info.IsDir() {
		return nil, nil, &ArtifactLoadError{Path: p.path, Err: errors.New("path is a directory")}
	}

	loader := p.loader
	if loader == nil {
		loader, err = loaderFor(p.path)
		if err != nil {
			return nil, nil, &ArtifactLoadError{Path: p.path, Err: err}
		}
	}

	clf, err := loader(p.path, p.opts)
	if err != nil {
		return nil, nil, &ArtifactLoadError{Path: p.path, Err: err}
	}
	if clf == nil {
		return nil, nil, &ArtifactLoadError{Path: p.path, Err: errors.New("loader returned no classifier")}
	}

	md, err := loadModelMetadata(p.path, p.metadataPath)
	if err != nil {
		return nil, nil, &ArtifactLoadError{Path: p.path, Err: err}
	}
	return clf, md, nil
}

func loaderFor(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadForest, nil
	case ".pkl", ".joblib":
		return LoadPython, nil
	}
	return nil, fmt.Errorf("unsupported artifact type %q (want .json, .pkl or .joblib)", filepath.Ext(path))
}

// instrument wraps clf so inference latency and failures reach metrics while
// keeping the probability capability visible to type assertions.
func instrument(clf Classifier, m MetricsInterface) Classifier {
	if m == nil {
		return clf
	}
	base := instrumented{inner: clf, metrics: m}
	if batch, ok := clf.(BatchEstimator); ok {
		return &instrumentedBatch{instrumentedEstimator{base, batch}, batch}
	}
	if est, ok := clf.(ProbabilityEstimator); ok {
		return &instrumentedEstimator{base, est}
	}
	return &base
}

type instrumented struct {
	inner   Classifier
	metrics MetricsInterface
}

func (c *instrumented) Predict(x [3]float64) (int, error) {
	start := time.Now()
	out, err := c.inner.Predict(x)
	c.observe(start, err)
	return out, err
}

func (c *instrumented) observe(start time.Time, err error) {
	c.metrics.MLLatencyObserve(time.Since(start).Seconds())
	if err != nil {
		c.metrics.MLFailuresInc()
	}
}

type instrumentedEstimator struct {
	instrumented
	est ProbabilityEstimator
}

func (c *instrumentedEstimator) PredictProba(x [3]float64) ([2]float64, error) {
	start := time.Now()
	p, err := c.est.PredictProba(x)
	c.observe(start, err)
	return p, err
}

type instrumentedBatch struct {
	instrumentedEstimator
	batch BatchEstimator
}

func (c *instrumentedBatch) PredictProbaBatch(xs [][3]float64) ([][2]float64, error) {
	start := time.Now()
	p, err := c.batch.PredictProbaBatch(xs)
	c.observe(start, err)
	return p, err
}
