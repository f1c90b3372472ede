package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/history"
)

var batchCmd = &cobra.Command{
	Use:   "batch <readings.csv>",
	Short: "Classify every reading of a CSV file and export the resulting history",
	Long: `batch reads rows of humidity,wind_speed,temperature (an optional header
row is skipped), classifies each one and prints the history summary. Rows that
fail validation are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		readings, err := readReadings(f)
		if err != nil {
			return err
		}

		b := newBackend(cmd)
		hist := history.NewLog(nil)
		for i, v := range readings {
			// Invalid rows never reach the backend or a remote session log.
			if err := v.Validate(); err != nil {
				log.Warn().Err(err).Int("row", i+1).Msg("skipping reading")
				continue
			}
			res, err := b.Evaluate(v)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			hist.Record(res)
		}

		sum := hist.Summary()
		if jsonOutput(cmd) {
			if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Predicciones: %d (BAJO %d, MOD/ALTO %d)\n", sum.Count, sum.CountLow, sum.CountHigh)
			fmt.Fprintf(cmd.OutOrStdout(), "Probabilidad media: %s (%d sin probabilidad)\n", sum.MeanProbability.Percent(), sum.UnavailableCount)
		}

		if dir, _ := cmd.Flags().GetString("export-dir"); dir != "" {
			data, err := hist.ExportBytes()
			if err != nil {
				return err
			}
			path, err := history.WriteExportFile(dir, time.Now(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("export-dir", "", "Write the history export file into this directory")
}

// readReadings parses humidity,wind_speed,temperature rows. Range checks are
// left to the evaluator so bad rows can be skipped individually.
func readReadings(r io.Reader) ([]features.Vector, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var out []features.Vector
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		var vals [3]float64
		header := false
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if line == 1 {
					header = true
					break
				}
				return nil, fmt.Errorf("line %d: %q is not a number", line, field)
			}
			vals[i] = v
		}
		if header {
			continue
		}
		out = append(out, features.New(vals[0], vals[1], vals[2]))
	}
}
