package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/wikipath-crawler/internal/controller"
	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
	"github.com/JakeFAU/wikipath-crawler/internal/walker"
)

// renderSummary prints the end-of-run counters.
func renderSummary(w io.Writer, s controller.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Crawl summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Jobs completed", s.JobsCompleted})
	t.AppendRow(table.Row{"Paths stored", s.Stored})
	t.AppendRow(table.Row{"Discarded after stop", s.Discarded})
	t.AppendRow(table.Row{"Persistence failures", s.PersistFailures})
	t.AppendRow(table.Row{"Job failures", s.JobFailures})
	t.AppendSeparator()
	for _, kind := range crawler.OutcomeKinds {
		t.AppendRow(table.Row{string(kind), s.Outcomes[kind]})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Visited titles", s.VisitedTitles})
	t.AppendRow(table.Row{"Storage (GB)", fmt.Sprintf("%.4f / %.2f", s.StorageSizeGB, s.StorageCeilingGB)})
	stop := s.StopReason
	if stop == "" {
		stop = "jobs exhausted"
	}
	t.AppendRow(table.Row{"Stop reason", stop})
	t.Render()
}

// renderPaths prints one row per sampled path.
func renderPaths(w io.Writer, paths []controller.PathStat) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Sample paths (up to %d)", controller.SampleLimit))
	t.AppendHeader(table.Row{"Start", "End", "Steps", "Outcome", "Path"})
	for _, p := range paths {
		t.AppendRow(table.Row{p.Start, p.End, p.Steps, p.Kind, strings.Join(p.Path, " -> ")})
	}
	t.Render()
}

// renderExperiment prints the directed-walk statistics.
func renderExperiment(w io.Writer, policy walker.Policy, s controller.Summary) {
	target := policy.TargetTitle
	if target == "" {
		target = fmt.Sprintf("depth %d", policy.TargetDepth)
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Target: " + target)
	t.AppendRow(table.Row{"Walks", s.JobsCompleted})
	t.AppendRow(table.Row{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)})
	t.AppendRow(table.Row{"Average steps", fmt.Sprintf("%.2f", s.AverageSteps)})
	if s.Shortest != nil {
		t.AppendRow(table.Row{"Shortest", describe(*s.Shortest)})
	}
	if s.Longest != nil {
		t.AppendRow(table.Row{"Longest", describe(*s.Longest)})
	}
	t.Render()
}

func describe(p controller.PathStat) string {
	return fmt.Sprintf("%s (%d steps)", p.Start, p.Steps)
}
