package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Work with a dashboard session's prediction history",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the session history as CSV (requires --server and --session)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverURL(cmd) == "" {
			return errors.New("history export needs --server: the history lives in the dashboard session")
		}
		data, err := newRemote(cmd).ExportCSV()
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		dir, _ := cmd.Flags().GetString("dir")
		switch {
		case out == "-":
			_, err = cmd.OutOrStdout().Write(data)
			return err
		case out != "":
			return os.WriteFile(out, data, 0o644)
		}

		path, err := history.WriteExportFile(dir, time.Now(), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	historyExportCmd.Flags().String("out", "", "Write to this file, or - for stdout")
	historyExportCmd.Flags().String("dir", ".", "Directory for the timestamped export file when --out is not set")
	historyCmd.AddCommand(historyExportCmd)
}
