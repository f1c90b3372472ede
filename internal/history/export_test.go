package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

func TestExport_HeaderOnlyWhenEmpty(t *testing.T) {
	data, err := NewLog(nil).ExportBytes()
	require.NoError(t, err)

	assert.Equal(t, "Fecha,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n", string(data))
}

func TestExport_Format(t *testing.T) {
	ts := time.Date(2026, 2, 3, 16, 4, 5, 0, time.Local)
	l := NewLog(clockwork.NewFakeClockAt(ts))
	l.Record(result(35.5, 10, 32.25, ml.LabelModerateHigh, ml.Available(0.73219)))
	l.Record(result(50, 15, 25, ml.LabelLow, ml.Unavailable))

	data, err := l.ExportBytes()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	stamp := "2026-02-03 16:04:05 " + ts.Format("-07:00")
	assert.Equal(t, stamp+",35.5,10,32.25,MOD/ALTO,0.7322,2", lines[1])
	assert.Equal(t, stamp+",50,15,25,BAJO,unavailable,0", lines[2])
}

func TestExport_RoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewLog(clock)
	l.Record(result(35.123456789, 10.1, 32.7, ml.LabelModerateHigh, ml.Available(0.8125)))
	clock.Advance(90 * time.Second)
	l.Record(result(100, 0, 0, ml.LabelLow, ml.Available(0)))
	clock.Advance(time.Hour)
	l.Record(result(20, 40, 45, ml.LabelModerateHigh, ml.Unavailable))

	var buf bytes.Buffer
	require.NoError(t, l.Export(&buf))

	parsed, err := ParseExport(&buf)
	require.NoError(t, err)

	original := l.Entries()
	require.Len(t, parsed, len(original))
	for i := range original {
		want, got := original[i], parsed[i]
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "row %d timestamp", i)
		assert.Equal(t, want.Humidity, got.Humidity)
		assert.Equal(t, want.WindSpeed, got.WindSpeed)
		assert.Equal(t, want.Temperature, got.Temperature)
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.AlertCount, got.AlertCount)
		assert.Equal(t, want.Probability.IsAvailable(), got.Probability.IsAvailable())
		if p, ok := want.Probability.Value(); ok {
			q, _ := got.Probability.Value()
			assert.InDelta(t, p, q, 5e-5)
		}
	}
}

func TestExport_RoundTripAcrossDSTFallBack(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	saved := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = saved })

	// 01:30 happens twice on 2026-11-01 in New York.
	first := time.Date(2026, 11, 1, 5, 30, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(first)
	l := NewLog(clock)
	l.Record(result(50, 15, 25, ml.LabelLow, ml.Available(0.2)))
	clock.Advance(time.Hour)
	l.Record(result(50, 15, 25, ml.LabelLow, ml.Available(0.2)))

	var buf bytes.Buffer
	require.NoError(t, l.Export(&buf))
	parsed, err := ParseExport(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.True(t, parsed[0].Timestamp.Equal(first))
	assert.True(t, parsed[1].Timestamp.Equal(first.Add(time.Hour)))
}

func TestParseExport_LegacyTimestamp(t *testing.T) {
	input := "Fecha,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n2026-01-01 00:00:00,50,15,25,BAJO,0.25,0\n"
	parsed, err := ParseExport(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.True(t, parsed[0].Timestamp.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)))
}

func TestParseExport_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong header", "Date,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n"},
		{"bad label", "Fecha,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n2026-01-01 00:00:00,50,15,25,MEDIO,0.5,0\n"},
		{"bad probability", "Fecha,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n2026-01-01 00:00:00,50,15,25,BAJO,1.5,0\n"},
		{"short row", "Fecha,Humedad,Viento,Temperatura,Predicción,Probabilidad,Alertas\n2026-01-01 00:00:00,50,15\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExport(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestWriteExportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	ts := time.Date(2026, 4, 2, 18, 45, 9, 0, time.Local)

	path, err := WriteExportFile(dir, ts, []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "historial_predicciones_20260402_184509.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))

	second, err := WriteExportFile(dir, ts, []byte("c,d\n"))
	require.NoError(t, err)
	assert.NotEqual(t, path, second)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2, "no temporary files left behind")
}

func TestWriteExportFile_SuffixesStartAtOne(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 4, 2, 18, 45, 9, 0, time.Local)

	var paths []string
	for i := 0; i < 3; i++ {
		path, err := WriteExportFile(dir, ts, []byte("x\n"))
		require.NoError(t, err)
		paths = append(paths, filepath.Base(path))
	}
	assert.Equal(t, []string{
		"historial_predicciones_20260402_184509.csv",
		"historial_predicciones_20260402_184509_1.csv",
		"historial_predicciones_20260402_184509_2.csv",
	}, paths)
}

func TestWriteExportFile_ConcurrentWritersNeverShareAName(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 4, 2, 18, 45, 9, 0, time.Local)
	const writers = 20

	var wg sync.WaitGroup
	paths := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = WriteExportFile(dir, ts, []byte(fmt.Sprintf("writer %d\n", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]], "path %s returned twice", paths[i])
		seen[paths[i]] = true

		content, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("writer %d\n", i), string(content))
	}

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, writers)
}

func TestWriteExportFile_FailureLeavesLogIntact(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	l := NewLog(nil)
	l.Record(result(50, 15, 25, ml.LabelLow, ml.Available(0.3)))
	data, err := l.ExportBytes()
	require.NoError(t, err)

	_, err = WriteExportFile(blocker, time.Now(), data)
	assert.Error(t, err)
	assert.Equal(t, 1, l.Len())
}
