package main

import (
	"github.com/spf13/cobra"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <humidity|wind_speed|temperature>",
	Short: "Risk probability along one input with the others fixed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		axis, err := features.ParseAxis(args[0])
		if err != nil {
			return err
		}
		fixed, err := vectorFlags(cmd)
		if err != nil {
			return err
		}
		steps, _ := cmd.Flags().GetInt("steps")

		points, err := newBackend(cmd).Sweep(axis, fixed, steps)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), points)
		}
		return printSweep(cmd.OutOrStdout(), axis, points)
	},
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Risk probability over two inputs with the third fixed",
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetString("x")
		y, _ := cmd.Flags().GetString("y")
		axisA, err := features.ParseAxis(x)
		if err != nil {
			return err
		}
		axisB, err := features.ParseAxis(y)
		if err != nil {
			return err
		}
		fixed, err := vectorFlags(cmd)
		if err != nil {
			return err
		}
		steps, _ := cmd.Flags().GetInt("steps")

		grid, err := newBackend(cmd).Heatmap(axisA, axisB, fixed, steps)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(cmd.OutOrStdout(), grid)
		}
		return printHeatmap(cmd.OutOrStdout(), grid)
	},
}

func init() {
	addVectorFlags(sweepCmd)
	sweepCmd.Flags().Int("steps", common.DefaultSweepSteps, "Number of grid points")

	addVectorFlags(heatmapCmd)
	heatmapCmd.Flags().String("x", features.Temperature.String(), "Row axis")
	heatmapCmd.Flags().String("y", features.Humidity.String(), "Column axis")
	heatmapCmd.Flags().Int("steps", common.DefaultHeatmapSteps, "Grid points per axis")

	sweepCmd.AddCommand(heatmapCmd)
}
