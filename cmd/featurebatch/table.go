package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nomis52/featurebatch/pipeline"
)

// renderReport formats a run summary followed, when any item failed, by one
// row per failure.
func renderReport(r *pipeline.Report) string {
	var b strings.Builder

	summary := table.NewWriter()
	summary.SetStyle(table.StyleRounded)
	summary.AppendHeader(table.Row{"Run", "Items", "Succeeded", "Failed", "Skipped", "Duration"})
	summary.AppendRow(table.Row{
		r.RunID,
		r.Items,
		r.Succeeded,
		r.Failed,
		r.Skipped,
		r.Duration().Round(time.Millisecond),
	})
	summary.SetColumnConfigs(rightAligned(2, 3, 4, 5, 6))
	b.WriteString(summary.Render())
	b.WriteString("\n")

	if len(r.Failures) == 0 {
		return b.String()
	}

	failures := table.NewWriter()
	failures.SetStyle(table.StyleRounded)
	failures.AppendHeader(table.Row{"#", "Path", "Stage", "Error"})
	for _, f := range r.Failures {
		failures.AppendRow(table.Row{strconv.Itoa(f.Index), f.Path, f.Stage, f.Message})
	}
	failures.SetColumnConfigs(rightAligned(1))
	b.WriteString(failures.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d of %d items not processed\n", r.Failed+r.Skipped, r.Items)
	return b.String()
}

func rightAligned(columns ...int) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	return configs
}
