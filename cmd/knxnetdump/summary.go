package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
)

// renderSummary prints the per-service frame counts of a session followed by
// the totals, as a table.
func renderSummary(w io.Writer, stats capture.Stats) error {
	services := make([]string, 0, len(stats.ByService))
	for name := range stats.ByService {
		services = append(services, name)
	}
	sort.Strings(services)

	data := [][]string{{"Service", "Frames"}}
	for _, name := range services {
		data = append(data, []string{name, strconv.FormatUint(stats.ByService[name], 10)})
	}

	pterm.Fprintln(w, pterm.Sprintf("Session %s", stats.SessionID))
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(w).Render(); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	totals := [][]string{
		{"Processed", strconv.FormatUint(stats.Processed, 10)},
		{"Failed", strconv.FormatUint(stats.Failed, 10)},
		{"Invalid lines", strconv.FormatUint(stats.InvalidLines, 10)},
		{"Sink errors", strconv.FormatUint(stats.SinkErrors, 10)},
	}
	if err := pterm.DefaultTable.WithData(totals).WithWriter(w).Render(); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}
	return nil
}
