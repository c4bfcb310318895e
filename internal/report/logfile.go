package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dbsmedya/lookupbench/internal/runner"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// LogFileSink renders a human-readable report of the whole run on Close.
type LogFileSink struct {
	collector
	path string
	now  func() time.Time
}

// NewLogFileSink writes to path when closed, replacing any earlier report.
func NewLogFileSink(path string) *LogFileSink {
	return &LogFileSink{path: path, now: time.Now}
}

func (s *LogFileSink) Report(_ context.Context, summary types.Summary, _ []types.TimingSample) error {
	s.add(summary)
	return nil
}

func (s *LogFileSink) Close() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	if err := WriteLog(f, s.summaries, s.now()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return f.Close()
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

// WriteLog writes the run report: a summary table sorted by median, per
// strategy statistics, the ranking, cross-check results and failures.
func WriteLog(w io.Writer, summaries []types.Summary, at time.Time) error {
	bw := bufio.NewWriter(w)
	sorted := byMedian(summaries)

	heading(bw, "PostgreSQL Lookup Benchmark Results")
	fmt.Fprintf(bw, "Timestamp: %s\n", at.UTC().Format("2006-01-02 15:04:05 UTC"))
	if len(summaries) > 0 {
		fmt.Fprintf(bw, "Run ID: %s\n", summaries[0].RunID)
	}
	fmt.Fprintln(bw)

	t := newTable("Benchmark", "Runs", "Median", "Mean", "Min", "Max", "StdDev", "P95", "P99", "Rows", "InputSize", "Status").
		alignRight(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	for _, s := range sorted {
		t.add(
			s.Name,
			fmt.Sprintf("%d/%d", s.CompletedRuns, s.ConfiguredRuns),
			round(s.Median),
			round(s.Mean),
			round(s.Min),
			round(s.Max),
			round(s.StdDev),
			round(s.P95),
			round(s.P99),
			strconv.Itoa(s.RowsReturned),
			strconv.Itoa(s.InputSize),
			string(s.Status),
		)
	}
	_ = t.render(bw)

	fmt.Fprintln(bw)
	heading(bw, "Detailed Statistics:")
	for _, s := range sorted {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "Benchmark: %s (%s)\n", s.Name, s.Description)
		fmt.Fprintf(bw, "  Runs: %d of %d\n", s.CompletedRuns, s.ConfiguredRuns)
		fmt.Fprintf(bw, "  Input Size: %s IDs\n", humanize.Comma(int64(s.InputSize)))
		fmt.Fprintf(bw, "  Rows Returned: %s\n", humanize.Comma(int64(s.RowsReturned)))
		fmt.Fprintf(bw, "  Median: %s\n", s.Median)
		fmt.Fprintf(bw, "  Mean: %s\n", s.Mean)
		fmt.Fprintf(bw, "  Min: %s\n", s.Min)
		fmt.Fprintf(bw, "  Max: %s\n", s.Max)
		fmt.Fprintf(bw, "  Standard Deviation: %s\n", s.StdDev)
		fmt.Fprintf(bw, "  50th Percentile: %s\n", s.P50)
		fmt.Fprintf(bw, "  95th Percentile: %s\n", s.P95)
		fmt.Fprintf(bw, "  99th Percentile: %s\n", s.P99)
		fmt.Fprintf(bw, "  Status: %s\n", s.Status)
		if s.RowsDigest != "" {
			fmt.Fprintf(bw, "  Rows Digest: %s\n", s.RowsDigest)
		}
		if s.Failure != "" {
			fmt.Fprintf(bw, "  Failure: %s\n", s.Failure)
		}
		for _, warn := range s.Warnings {
			fmt.Fprintf(bw, "  Warning: %s\n", warn)
		}
	}

	fmt.Fprintln(bw)
	heading(bw, "Performance Ranking (by median time):")
	fastest := fastestMedian(sorted)
	rank := 0
	for _, s := range sorted {
		if s.CompletedRuns == 0 {
			continue
		}
		rank++
		fmt.Fprintf(bw, "%d. %s - %s (%.2fx)\n", rank, s.Name, round(s.Median), speedup(s.Median, fastest))
	}

	fmt.Fprintln(bw)
	heading(bw, "Cross-check:")
	if discrepancies := runner.CrossCheck(summaries); len(discrepancies) > 0 {
		for _, d := range discrepancies {
			fmt.Fprintf(bw, "WARNING %s\n", d)
		}
	} else {
		fmt.Fprintln(bw, "All strategies returned identical rows.")
	}

	var failed []types.Summary
	for _, s := range summaries {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(bw)
		heading(bw, "Failed Strategies:")
		for _, s := range failed {
			fmt.Fprintf(bw, "%s: %s after %d of %d runs: %s\n", s.Name, s.Status, s.CompletedRuns, s.ConfiguredRuns, s.Failure)
		}
	}

	return bw.Flush()
}
