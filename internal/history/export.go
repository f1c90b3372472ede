package history

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

const maxExportSuffix = 1000

// Header is the fixed column order of the export table.
var Header = []string{"Fecha", "Humedad", "Viento", "Temperatura", "Predicción", "Probabilidad", "Alertas"}

// Export writes the current entries as CSV.
func (l *Log) Export(w io.Writer) error {
	return WriteCSV(w, l.Entries())
}

func (l *Log) ExportBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Export(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV renders entries with a header row. Inputs are printed with the
// shortest representation that parses back to the same float.
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.Timestamp.Local().Format(common.ExportTimestampLayout),
			formatInput(e.Humidity),
			formatInput(e.WindSpeed),
			formatInput(e.Temperature),
			e.Label.Display(),
			e.Probability.String(),
			strconv.Itoa(e.AlertCount),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ParseExport reads a table produced by WriteCSV back into entries.
func ParseExport(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("export is empty, missing header")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], col)
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRecord(record []string) (Entry, error) {
	var e Entry
	var err error

	if e.Timestamp, err = parseTimestamp(record[0]); err != nil {
		return e, err
	}
	if e.Humidity, err = strconv.ParseFloat(record[1], 64); err != nil {
		return e, fmt.Errorf("parse humidity: %w", err)
	}
	if e.WindSpeed, err = strconv.ParseFloat(record[2], 64); err != nil {
		return e, fmt.Errorf("parse wind speed: %w", err)
	}
	if e.Temperature, err = strconv.ParseFloat(record[3], 64); err != nil {
		return e, fmt.Errorf("parse temperature: %w", err)
	}
	if e.Label, err = ml.ParseLabel(record[4]); err != nil {
		return e, err
	}
	if e.Probability, err = ml.ParseProbability(record[5]); err != nil {
		return e, err
	}
	if e.AlertCount, err = strconv.Atoi(record[6]); err != nil {
		return e, fmt.Errorf("parse alert count: %w", err)
	}
	if e.AlertCount < 0 || e.AlertCount > 3 {
		return e, fmt.Errorf("alert count %d outside [0, 3]", e.AlertCount)
	}
	return e, nil
}

// parseTimestamp reads the offset-qualified layout; rows without an offset
// come from older exports and are read as local time.
func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(common.ExportTimestampLayout, v)
	if err == nil {
		return ts, nil
	}
	ts, legacyErr := time.ParseInLocation(common.LegacyTimestampLayout, v, time.Local)
	if legacyErr != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return ts, nil
}

func formatInput(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExportFileName is the timestamped file name for an export taken at ts.
func ExportFileName(ts time.Time) string {
	return fmt.Sprintf("%s_%s.csv", common.ExportFilePrefix, ts.Local().Format(common.ExportFileTimeLayout))
}

// WriteExportFile stores data under dir with a timestamped name and returns
// the final path. The file is written to a temporary name and renamed, so a
// failed write never leaves a partial export behind. An existing export with
// the same name, including one being written concurrently, is never
// overwritten.
func WriteExportFile(dir string, ts time.Time, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	path, err := claimExportName(dir, ExportFileName(ts))
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to finalize export: %w", err)
	}

	log.Info().Str("file", path).Int("bytes", len(data)).Msg("Prediction history exported")
	return path, nil
}

// claimExportName reserves base, or base_1, base_2, ... when taken, by
// creating an empty placeholder with O_EXCL. The caller renames the finished
// export over its own placeholder.
func claimExportName(dir, base string) (string, error) {
	stem := strings.TrimSuffix(base, ".csv")
	path := filepath.Join(dir, base)
	for i := 1; i <= maxExportSuffix; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(path)
				return "", fmt.Errorf("failed to reserve export name: %w", err)
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to reserve export name: %w", err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", stem, i))
	}
	return "", fmt.Errorf("failed to reserve export name: %s has %d exports already", base, maxExportSuffix)
}
