package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"

	"github.com/dbsmedya/lookupbench/internal/runner"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// ConsoleSink prints a line per finished strategy and a ranked table with
// speed-up against the fastest strategy on Close.
type ConsoleSink struct {
	collector
	w        io.Writer
	colorize bool
}

// NewConsoleSink writes to w; colorize enables ANSI colours.
func NewConsoleSink(w io.Writer, colorize bool) *ConsoleSink {
	return &ConsoleSink{w: w, colorize: colorize}
}

func (s *ConsoleSink) paint(c color.Color) func(string) string {
	if !s.colorize {
		return nil
	}
	return func(line string) string { return c.Sprint(line) }
}

func (s *ConsoleSink) sprint(c color.Color, text string) string {
	if p := s.paint(c); p != nil {
		return p(text)
	}
	return text
}

func (s *ConsoleSink) Report(_ context.Context, summary types.Summary, _ []types.TimingSample) error {
	s.add(summary)

	var line string
	if summary.Failed() {
		line = s.sprint(color.Red, fmt.Sprintf("[FAIL] %-28s %s after %d/%d runs: %s",
			summary.Name, summary.Status, summary.CompletedRuns, summary.ConfiguredRuns, summary.Failure))
	} else {
		line = fmt.Sprintf("[ ok ] %-28s median %-12s p95 %-12s %s runs, %s rows",
			summary.Name, round(summary.Median), round(summary.P95),
			humanize.Comma(int64(summary.CompletedRuns)), humanize.Comma(int64(summary.RowsReturned)))
	}
	for _, w := range summary.Warnings {
		line += "\n       " + s.sprint(color.Yellow, "warning: "+w)
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *ConsoleSink) Close() error {
	if len(s.summaries) == 0 {
		return nil
	}

	sorted := byMedian(s.summaries)
	fastest := fastestMedian(sorted)

	t := newTable("#", "Strategy", "Median", "Mean", "P95", "P99", "StdDev", "Speed-up", "Runs").
		alignRight(0, 2, 3, 4, 5, 6, 7, 8)
	rank := 0
	for _, sum := range sorted {
		runs := fmt.Sprintf("%d/%d", sum.CompletedRuns, sum.ConfiguredRuns)
		if sum.CompletedRuns == 0 {
			t.addStyled(s.paint(color.Red), "-", sum.Name, "-", "-", "-", "-", "-", "-", runs)
			continue
		}
		rank++
		var style func(string) string
		switch {
		case sum.Failed():
			style = s.paint(color.Red)
		case rank == 1:
			style = s.paint(color.Green)
		}
		t.addStyled(style,
			strconv.Itoa(rank),
			sum.Name,
			round(sum.Median),
			round(sum.Mean),
			round(sum.P95),
			round(sum.P99),
			round(sum.StdDev),
			fmt.Sprintf("%.2fx", speedup(sum.Median, fastest)),
			runs,
		)
	}

	fmt.Fprintln(s.w)
	fmt.Fprintln(s.w, s.sprint(color.Bold, fmt.Sprintf("Results for %s identifiers (run %s)",
		humanize.Comma(int64(sorted[0].InputSize)), sorted[0].RunID)))
	if err := t.render(s.w); err != nil {
		return err
	}

	for _, d := range runner.CrossCheck(s.summaries) {
		fmt.Fprintln(s.w, s.sprint(color.Yellow, "cross-check: "+d.String()))
	}
	return nil
}
