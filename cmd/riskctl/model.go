package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/client"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Load the model and describe it",
	RunE: func(cmd *cobra.Command, args []string) error {
		var info *client.ModelInfo
		if serverURL(cmd) != "" {
			var err error
			if info, err = newRemote(cmd).Model(); err != nil {
				return err
			}
		} else {
			info = localModelInfo(newProvider(cmd))
		}

		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), info)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Ruta\t%s\n", info.Path)
		if !info.Loaded {
			fmt.Fprintf(tw, "Estado\tno disponible: %s\n", info.Error)
			return tw.Flush()
		}
		fmt.Fprintf(tw, "Estado\tcargado\n")
		fmt.Fprintf(tw, "Probabilidades\t%v\n", info.SupportsProbability)
		if md := info.Metadata; md != nil {
			fmt.Fprintf(tw, "Versión\t%s\n", md.Version)
			fmt.Fprintf(tw, "Algoritmo\t%s\n", md.Algorithm)
			fmt.Fprintf(tw, "Calibración\t%s\n", md.Calibration)
			if !md.TrainedAt.IsZero() {
				fmt.Fprintf(tw, "Entrenado\t%s\n", md.TrainedAt.Format(time.RFC3339))
			}
			if md.Accuracy > 0 {
				fmt.Fprintf(tw, "Exactitud\t%.2f%%\n", md.Accuracy*100)
			}
			if md.Description != "" {
				fmt.Fprintf(tw, "Descripción\t%s\n", md.Description)
			}
		}
		return tw.Flush()
	},
}

func localModelInfo(provider *ml.Provider) *client.ModelInfo {
	info := &client.ModelInfo{Path: provider.Path()}
	clf, err := provider.Load()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Loaded = true
	info.SupportsProbability = ml.SupportsProbability(clf)
	info.Metadata = provider.Metadata()
	if at := provider.LoadedAt(); !at.IsZero() {
		info.LoadedAt = &at
	}
	return info
}
