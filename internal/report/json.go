package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dbsmedya/lookupbench/internal/runner"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// JSONFile is the JSON report's name inside the output directory.
const JSONFile = "summary.json"

type jsonSummary struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	InputSize      int       `json:"input_size"`
	RowsReturned   int       `json:"rows_returned"`
	ConfiguredRuns int       `json:"configured_runs"`
	CompletedRuns  int       `json:"completed_runs"`
	Status         string    `json:"status"`
	Partial        bool      `json:"partial"`
	MeanNs         int64     `json:"mean_ns"`
	MedianNs       int64     `json:"median_ns"`
	MinNs          int64     `json:"min_ns"`
	MaxNs          int64     `json:"max_ns"`
	StdDevNs       int64     `json:"std_dev_ns"`
	P50Ns          int64     `json:"p50_ns"`
	P95Ns          int64     `json:"p95_ns"`
	P99Ns          int64     `json:"p99_ns"`
	RowsDigest     string    `json:"rows_digest,omitempty"`
	Failure        string    `json:"failure,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedNs      int64     `json:"elapsed_ns"`
}

type jsonDiscrepancy struct {
	Strategy string `json:"strategy"`
	Check    string `json:"check"`
	Got      string `json:"got"`
	Want     string `json:"want"`
}

type jsonReport struct {
	RunID         string            `json:"run_id"`
	Summaries     []jsonSummary     `json:"summaries"`
	Discrepancies []jsonDiscrepancy `json:"discrepancies"`
}

// JSONSink writes every summary of the run to one JSON document on Close.
type JSONSink struct {
	collector
	path string
}

// NewJSONSink writes to path when closed.
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

func (s *JSONSink) Report(_ context.Context, summary types.Summary, _ []types.TimingSample) error {
	s.add(summary)
	return nil
}

func (s *JSONSink) Close() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	if err := WriteJSON(f, s.summaries); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return f.Close()
}

// WriteJSON writes summaries, in run order, and their cross-check result to w.
func WriteJSON(w io.Writer, summaries []types.Summary) error {
	out := jsonReport{
		Summaries:     make([]jsonSummary, 0, len(summaries)),
		Discrepancies: []jsonDiscrepancy{},
	}
	if len(summaries) > 0 {
		out.RunID = summaries[0].RunID
	}
	for _, s := range summaries {
		out.Summaries = append(out.Summaries, jsonSummary{
			Name:           s.Name,
			Description:    s.Description,
			InputSize:      s.InputSize,
			RowsReturned:   s.RowsReturned,
			ConfiguredRuns: s.ConfiguredRuns,
			CompletedRuns:  s.CompletedRuns,
			Status:         string(s.Status),
			Partial:        s.Partial,
			MeanNs:         types.ToNanos(s.Mean),
			MedianNs:       types.ToNanos(s.Median),
			MinNs:          types.ToNanos(s.Min),
			MaxNs:          types.ToNanos(s.Max),
			StdDevNs:       types.ToNanos(s.StdDev),
			P50Ns:          types.ToNanos(s.P50),
			P95Ns:          types.ToNanos(s.P95),
			P99Ns:          types.ToNanos(s.P99),
			RowsDigest:     s.RowsDigest,
			Failure:        s.Failure,
			Warnings:       s.Warnings,
			StartedAt:      s.StartedAt,
			ElapsedNs:      types.ToNanos(s.Elapsed),
		})
	}
	for _, d := range runner.CrossCheck(summaries) {
		out.Discrepancies = append(out.Discrepancies, jsonDiscrepancy(d))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
