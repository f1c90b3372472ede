package ml

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_LoadIsMemoized(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), testArtifact())
	metrics := &MockMetrics{}
	p := NewProvider(path, WithMetrics(metrics))

	first, err := p.Load()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		clf, err := p.Load()
		require.NoError(t, err)
		assert.Same(t, first, clf)
	}
	assert.Equal(t, 1, p.LoadCount())
	assert.True(t, metrics.loaded)
	assert.Equal(t, 1, metrics.loadedSets)
	assert.False(t, p.LoadedAt().IsZero())
}

func TestProvider_ConcurrentLoad(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), testArtifact())
	p := NewProvider(path)

	var wg sync.WaitGroup
	results := make([]Classifier, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Load()
		}(i)
	}
	wg.Wait()

	for _, clf := range results {
		assert.Same(t, results[0], clf)
	}
	assert.Equal(t, 1, p.LoadCount())
}

func TestProvider_MissingArtifact(t *testing.T) {
	metrics := &MockMetrics{}
	p := NewProvider(filepath.Join(t.TempDir(), "missing.json"), WithMetrics(metrics))

	clf, err := p.Load()
	assert.Nil(t, clf)
	require.Error(t, err)

	var loadErr *ArtifactLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, metrics.loaded)

	// The failure is cached: no second attempt.
	_, err2 := p.Load()
	assert.Same(t, err, err2)
	assert.Equal(t, 1, p.LoadCount())
}

func TestProvider_InvalidArtifacts(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"format":"forest/v1","trees":"x"}`), 0o600))

	unknown := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(unknown, []byte("binary"), 0o600))

	for _, path := range []string{corrupt, unknown, dir} {
		_, err := NewProvider(path).Load()
		var loadErr *ArtifactLoadError
		assert.True(t, errors.As(err, &loadErr), "path %s: %v", path, err)
	}
}

func TestProvider_CustomLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	fake := LabelFunc(func([3]float64) (int, error) { return 1, nil })
	p := NewProvider(path, WithLoader(func(string, LoadOptions) (Classifier, error) { return fake, nil }))

	clf, err := p.Load()
	require.NoError(t, err)
	out, err := clf.Predict([3]float64{50, 15, 25})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestProvider_InstrumentationKeepsCapability(t *testing.T) {
	dir := t.TempDir()
	metrics := &MockMetrics{}

	withProba := writeArtifact(t, dir, testArtifact())
	clf, err := NewProvider(withProba, WithMetrics(metrics)).Load()
	require.NoError(t, err)
	assert.True(t, SupportsProbability(clf))

	_, err = clf.(ProbabilityEstimator).PredictProba([3]float64{50, 15, 25})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.latencyObs)

	labelOnlyArt := testArtifact()
	disabled := false
	labelOnlyArt.PredictProba = &disabled
	labelDir := t.TempDir()
	labelOnly := writeArtifact(t, labelDir, labelOnlyArt)
	clf, err = NewProvider(labelOnly, WithMetrics(metrics)).Load()
	require.NoError(t, err)
	assert.False(t, SupportsProbability(clf))
}

func TestProvider_Metadata(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, testArtifact())

	md := ModelMetadata{
		Version:  "2025-06",
		Features: []string{"humidity", "wind_speed", "temperature"},
		Accuracy: 0.81,
	}
	data, err := json.Marshal(md)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_metadata.json"), data, 0o600))

	p := NewProvider(path)
	require.NoError(t, p.Err())
	require.NotNil(t, p.Metadata())
	assert.Equal(t, "2025-06", p.Metadata().Version)
}

func TestProvider_MetadataFeatureOrderMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, testArtifact())

	data := []byte(`{"version":"bad","features":["temperature","wind_speed","humidity"]}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_metadata.json"), data, 0o600))

	_, err := NewProvider(path).Load()
	var loadErr *ArtifactLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestProvider_ExplicitMetadataMissing(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), testArtifact())

	_, err := NewProvider(path, WithMetadataPath(filepath.Join(t.TempDir(), "nope.json"))).Load()
	assert.Error(t, err)
}
