package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify one reading and show its probability and alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := vectorFlags(cmd)
		if err != nil {
			return err
		}
		res, err := newBackend(cmd).Evaluate(v)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), res)
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show the threshold alerts for one reading (no model needed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := vectorFlags(cmd)
		if err != nil {
			return err
		}
		var alerts risk.AlertSet
		if serverURL(cmd) != "" {
			alerts, err = newRemote(cmd).Alerts(v)
			if err != nil {
				return err
			}
		} else {
			alerts = risk.ComputeAlerts(v)
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), alerts)
		}
		for _, a := range alerts {
			fmt.Fprintln(cmd.OutOrStdout(), a.Message())
		}
		if alerts.Len() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Sin alertas")
		}
		return nil
	},
}

func init() {
	addVectorFlags(predictCmd)
	addVectorFlags(alertsCmd)
}
