package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// CSV file names inside the output directory.
const (
	RawFile     = "raw_results.csv"
	SummaryFile = "summary.csv"
)

var rawHeader = []string{
	"run_id", "benchmark_name", "description", "input_size", "rows_returned",
	"run_number", "duration_ms", "duration_ns",
}

var summaryHeader = []string{
	"run_id", "benchmark_name", "description", "input_size", "rows_returned",
	"total_runs", "configured_runs", "partial", "status",
	"mean_ms", "median_ms", "std_dev_ms", "min_ms", "max_ms", "p50_ms", "p95_ms", "p99_ms",
}

// CSVSink appends one row per trial to raw_results.csv and one row per
// strategy to summary.csv. Files from earlier runs are kept; run_id tells
// runs apart.
type CSVSink struct {
	raw     *os.File
	summary *os.File
	rawW    *csv.Writer
	sumW    *csv.Writer
}

// NewCSVSink opens (or creates) both files in dir.
func NewCSVSink(dir string) (*CSVSink, error) {
	raw, rawW, err := openAppend(filepath.Join(dir, RawFile), rawHeader)
	if err != nil {
		return nil, err
	}
	summary, sumW, err := openAppend(filepath.Join(dir, SummaryFile), summaryHeader)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &CSVSink{raw: raw, summary: summary, rawW: rawW, sumW: sumW}, nil
}

// openAppend opens path for appending and writes header if the file is new.
func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	return f, w, nil
}

// Report writes the samples in trial order and then the summary row.
func (s *CSVSink) Report(_ context.Context, summary types.Summary, samples []types.TimingSample) error {
	for _, sample := range samples {
		if err := s.rawW.Write(rawRecord(summary, sample)); err != nil {
			return fmt.Errorf("failed to write raw result: %w", err)
		}
	}
	s.rawW.Flush()
	if err := s.rawW.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", RawFile, err)
	}

	if err := s.sumW.Write(summaryRecord(summary)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	s.sumW.Flush()
	if err := s.sumW.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", SummaryFile, err)
	}
	return nil
}

// Close flushes and closes both files.
func (s *CSVSink) Close() error {
	var result *multierror.Error
	for _, w := range []*csv.Writer{s.rawW, s.sumW} {
		w.Flush()
		if err := w.Error(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.raw.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.summary.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func rawRecord(s types.Summary, sample types.TimingSample) []string {
	return []string{
		s.RunID,
		s.Name,
		sanitizeDescription(s.Description),
		strconv.Itoa(s.InputSize),
		strconv.Itoa(sample.Rows),
		strconv.Itoa(sample.Trial),
		millis(sample.Duration),
		strconv.FormatInt(types.ToNanos(sample.Duration), 10),
	}
}

func summaryRecord(s types.Summary) []string {
	return []string{
		s.RunID,
		s.Name,
		sanitizeDescription(s.Description),
		strconv.Itoa(s.InputSize),
		strconv.Itoa(s.RowsReturned),
		strconv.Itoa(s.CompletedRuns),
		strconv.Itoa(s.ConfiguredRuns),
		strconv.FormatBool(s.Partial),
		string(s.Status),
		millis(s.Mean),
		millis(s.Median),
		millis(s.StdDev),
		millis(s.Min),
		millis(s.Max),
		millis(s.P50),
		millis(s.P95),
		millis(s.P99),
	}
}
