package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func alertMessages(set risk.AlertSet) string {
	if set.Len() == 0 {
		return "-"
	}
	msgs := make([]string, set.Len())
	for i, a := range set {
		msgs[i] = a.Message()
	}
	return strings.Join(msgs, "; ")
}

func printResult(w io.Writer, res risk.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, axis := range features.Order {
		fmt.Fprintf(tw, "%s\t%v %s\n", axis.Label(), res.Features.Get(axis), axis.Unit())
	}
	fmt.Fprintf(tw, "Predicción\t%s\n", res.Label.Display())
	fmt.Fprintf(tw, "Probabilidad\t%s\n", res.Probability.Percent())
	fmt.Fprintf(tw, "Alertas\t%s\n", alertMessages(res.Alerts))
	return tw.Flush()
}

func printSweep(w io.Writer, axis features.Axis, points []risk.SweepPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s)\tProbabilidad\n", axis.Label(), axis.Unit())
	for _, p := range points {
		fmt.Fprintf(tw, "%.2f\t%s\n", p.Value, p.Probability.Percent())
	}
	return tw.Flush()
}

// printHeatmap prints axis A down the rows and axis B across the columns;
// holes are shown as "--".
func printHeatmap(w io.Writer, grid *risk.SweepGrid) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s \\ %s\t", grid.AxisA, grid.AxisB)
	for _, b := range grid.ValuesB {
		fmt.Fprintf(tw, "%.1f\t", b)
	}
	fmt.Fprintln(tw)
	for i, a := range grid.ValuesA {
		fmt.Fprintf(tw, "%.1f\t", a)
		for _, cell := range grid.Cells[i] {
			if p, ok := cell.Value(); ok {
				fmt.Fprintf(tw, "%.2f\t", p)
			} else {
				fmt.Fprint(tw, "--\t")
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
