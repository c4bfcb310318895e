package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// ============================================================================
// Test Helpers
// ============================================================================

const runID = "6f1c1d0e-7a61-4d55-9a39-2f0b3c7c1a10"

func completed(name string, median time.Duration) types.Summary {
	return types.Summary{
		RunID:          runID,
		Name:           name,
		Description:    "Looks up, with commas",
		InputSize:      60000,
		RowsReturned:   59998,
		ConfiguredRuns: 3,
		CompletedRuns:  3,
		Mean:           median + time.Microsecond,
		Median:         median,
		Min:            median - time.Microsecond,
		Max:            median + 2*time.Microsecond,
		StdDev:         time.Microsecond,
		P50:            median,
		P95:            median + 2*time.Microsecond,
		P99:            median + 2*time.Microsecond,
		Status:         types.StatusComplete,
		RowsDigest:     "abc123",
		StartedAt:      time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}
}

func failed(name string) types.Summary {
	s := completed(name, 0)
	s.CompletedRuns = 0
	s.RowsReturned = 0
	s.Mean, s.Median, s.Min, s.Max, s.StdDev, s.P50, s.P95, s.P99 = 0, 0, 0, 0, 0, 0, 0, 0
	s.Status = types.StatusRetriesExhausted
	s.Partial = true
	s.RowsDigest = ""
	s.Failure = "relation \"overrides\" does not exist"
	return s
}

func samples(n int) []types.TimingSample {
	out := make([]types.TimingSample, n)
	for i := range out {
		out[i] = types.TimingSample{Trial: i + 1, Duration: time.Duration(i+1) * 1500 * time.Microsecond, Rows: 59998}
	}
	return out
}

type stubSink struct {
	reports int
	closed  bool
	err     error
}

func (s *stubSink) Report(context.Context, types.Summary, []types.TimingSample) error {
	s.reports++
	return s.err
}

func (s *stubSink) Close() error {
	s.closed = true
	return s.err
}

// ============================================================================
// Helpers
// ============================================================================

func TestByMedian(t *testing.T) {
	in := []types.Summary{completed("slow", 3*time.Millisecond), failed("broken"), completed("fast", time.Millisecond)}
	out := byMedian(in)

	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"fast", "slow", "broken"}, names)
	assert.Equal(t, "slow", in[0].Name, "input untouched")
	assert.Equal(t, time.Millisecond, fastestMedian(in))
}

func TestSpeedup(t *testing.T) {
	assert.Equal(t, 1.0, speedup(time.Millisecond, time.Millisecond))
	assert.Equal(t, 2.5, speedup(5*time.Millisecond, 2*time.Millisecond))
	assert.Equal(t, 1.0, speedup(time.Millisecond, 0))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, "1.500", millis(1500*time.Microsecond))
	assert.Equal(t, "0.001", millis(time.Microsecond))
	assert.Equal(t, "0.000", millis(0))
}

func TestTable_AlignsWideRunes(t *testing.T) {
	tb := newTable("Name", "Value").alignRight(1)
	tb.add("日本", "1")
	tb.add("abcd", "100")

	var buf bytes.Buffer
	require.NoError(t, tb.render(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name  Value", lines[0])
	assert.Equal(t, "日本      1", lines[2])
	assert.Equal(t, "abcd    100", lines[3])
}

// ============================================================================
// CSV
// ============================================================================

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()

	sink, err := NewCSVSink(dir)
	require.NoError(t, err)
	require.NoError(t, sink.Report(context.Background(), completed("any_array", 2*time.Millisecond), samples(3)))
	require.NoError(t, sink.Close())

	raw := readCSV(t, filepath.Join(dir, RawFile))
	require.Len(t, raw, 4)
	assert.Equal(t, rawHeader, raw[0])
	assert.Equal(t, []string{runID, "any_array", "Looks up; with commas", "60000", "59998", "1", "1.500", "1500000"}, raw[1])
	assert.Equal(t, "3", raw[3][5])

	summary := readCSV(t, filepath.Join(dir, SummaryFile))
	require.Len(t, summary, 2)
	assert.Equal(t, summaryHeader, summary[0])
	assert.Equal(t, []string{
		runID, "any_array", "Looks up; with commas", "60000", "59998", "3", "3", "false", "complete",
		"2.001", "2.000", "0.001", "1.999", "2.002", "2.000", "2.002", "2.002",
	}, summary[1])
}

func TestCSVSink_AppendsWithoutRepeatingHeader(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		sink, err := NewCSVSink(dir)
		require.NoError(t, err)
		require.NoError(t, sink.Report(context.Background(), failed("broken"), nil))
		require.NoError(t, sink.Close())
	}

	summary := readCSV(t, filepath.Join(dir, SummaryFile))
	require.Len(t, summary, 3)
	assert.Equal(t, "configured_retries_exhausted", summary[2][8])
	assert.Equal(t, "true", summary[2][7])

	raw := readCSV(t, filepath.Join(dir, RawFile))
	assert.Len(t, raw, 1, "header only")
}

func TestNewCSVSink_MissingDirectory(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

// ============================================================================
// Log file
// ============================================================================

func TestWriteLog(t *testing.T) {
	summaries := []types.Summary{
		completed("temp_table_binary_copy", 4*time.Millisecond),
		failed("broken"),
		completed("any_array", 2*time.Millisecond),
	}
	outlier := completed("raw_sql_large_in", 8*time.Millisecond)
	outlier.RowsReturned = 10
	outlier.Warnings = []string{"residual table lookup_ids"}
	summaries = append(summaries, outlier)

	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, summaries, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)))
	out := buf.String()

	assert.Contains(t, out, "Timestamp: 2026-10-19 09:30:00 UTC")
	assert.Contains(t, out, "Run ID: "+runID)
	assert.Contains(t, out, "Benchmark: any_array (Looks up, with commas)")
	assert.Contains(t, out, "  Input Size: 60,000 IDs")
	assert.Contains(t, out, "  95th Percentile: 2.002ms")
	assert.Contains(t, out, "  Warning: residual table lookup_ids")

	ranking := out[strings.Index(out, "Performance Ranking"):]
	assert.Contains(t, ranking, "1. any_array - 2ms (1.00x)")
	assert.Contains(t, ranking, "2. temp_table_binary_copy - 4ms (2.00x)")
	assert.Contains(t, ranking, "3. raw_sql_large_in - 8ms (4.00x)")
	assert.NotContains(t, ranking[:strings.Index(ranking, "Cross-check")], "broken")

	assert.Contains(t, out, "WARNING raw_sql_large_in: row_count 10, majority 59998")
	assert.Contains(t, out, "broken: configured_retries_exhausted after 0 of 3 runs")

	// summary table is sorted by median
	table := out[:strings.Index(out, "Detailed Statistics")]
	assert.Less(t, strings.Index(table, "any_array"), strings.Index(table, "temp_table_binary_copy"))
	assert.Less(t, strings.Index(table, "raw_sql_large_in"), strings.Index(table, "broken"))
}

func TestWriteLog_AllAgree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, []types.Summary{completed("a", 1), completed("b", 2)}, time.Now()))
	assert.Contains(t, buf.String(), "All strategies returned identical rows.")
	assert.NotContains(t, buf.String(), "Failed Strategies")
}

func TestLogFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmark_results.log")
	sink := NewLogFileSink(path)
	sink.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, sink.Report(context.Background(), completed("any_array", time.Millisecond), samples(3)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "PostgreSQL Lookup Benchmark Results\n"))
	assert.Contains(t, string(data), "Timestamp: 2026-01-02 03:04:05 UTC")
}

// ============================================================================
// Console
// ============================================================================

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	require.NoError(t, sink.Report(context.Background(), completed("temp_table_join", 3*time.Millisecond), nil))
	require.NoError(t, sink.Report(context.Background(), failed("broken"), nil))
	require.NoError(t, sink.Report(context.Background(), completed("any_array", time.Millisecond), nil))
	require.NoError(t, sink.Close())

	out := buf.String()
	assert.Contains(t, out, "[ ok ] temp_table_join")
	assert.Contains(t, out, "[FAIL] broken")
	assert.Contains(t, out, "Results for 60,000 identifiers")
	assert.Regexp(t, regexp.MustCompile(`(?m)^1  any_array\s+1ms.*1\.00x\s+3/3$`), out)
	assert.Regexp(t, regexp.MustCompile(`(?m)^2  temp_table_join\s+3ms.*3\.00x\s+3/3$`), out)
	assert.Regexp(t, regexp.MustCompile(`(?m)^-  broken\s+-`), out)
	assert.NotContains(t, out, "\x1b[")
}

func TestConsoleSink_Warnings(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, false)

	s := completed("a", time.Millisecond)
	s.Warnings = []string{"cleanup failed for table lookup_ids: connection reset"}
	require.NoError(t, sink.Report(context.Background(), s, nil))
	assert.Contains(t, buf.String(), "warning: cleanup failed for table lookup_ids")
}

func TestConsoleSink_CloseWithoutSummaries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf, true).Close())
	assert.Empty(t, buf.String())
}

// ============================================================================
// JSON
// ============================================================================

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []types.Summary{completed("a", time.Millisecond), failed("broken")}))

	var got jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, runID, got.RunID)
	require.Len(t, got.Summaries, 2)
	assert.Equal(t, "a", got.Summaries[0].Name)
	assert.Equal(t, int64(time.Millisecond), got.Summaries[0].MedianNs)
	assert.Equal(t, "configured_retries_exhausted", got.Summaries[1].Status)
	assert.True(t, got.Summaries[1].Partial)
	assert.Empty(t, got.Discrepancies)
}

func TestJSONSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), JSONFile)
	sink := NewJSONSink(path)
	require.NoError(t, sink.Report(context.Background(), completed("a", time.Millisecond), nil))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "a"`)
}

// ============================================================================
// Database
// ============================================================================

func TestDBSink(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "bench"."summaries"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sink, err := NewDBSink(context.Background(), db, "bench.summaries")
	require.NoError(t, err)

	s := completed("any_array", time.Millisecond)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "bench"."summaries"`)).
		WithArgs(runID, "any_array", s.Description, 60000, 59998, 3, 3, false, "complete",
			int64(s.Mean), int64(s.Median), int64(s.StdDev), int64(s.Min), int64(s.Max),
			int64(s.P50), int64(s.P95), int64(s.P99), "abc123", nil, nil, s.StartedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, sink.Report(context.Background(), s, nil))
	require.NoError(t, sink.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBSink_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = NewDBSink(context.Background(), nil, "t")
	assert.Error(t, err)

	_, err = NewDBSink(context.Background(), db, "bad name")
	assert.Error(t, err)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied for schema public"))
	_, err = NewDBSink(context.Background(), db, "summaries")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

// ============================================================================
// Multi and Build
// ============================================================================

func TestMulti_CombinesErrors(t *testing.T) {
	ok := &stubSink{}
	bad := &stubSink{err: errors.New("disk full")}
	m := NewMulti(bad, ok)

	err := m.Report(context.Background(), completed("a", 1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, ok.reports, "later sinks still receive the summary")

	err = m.Close()
	require.Error(t, err)
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)
}

func TestMulti_NoErrors(t *testing.T) {
	m := NewMulti(&stubSink{}, &stubSink{})
	assert.NoError(t, m.Report(context.Background(), completed("a", 1), nil))
	assert.NoError(t, m.Close())
	assert.Equal(t, 2, m.Len())
}

func TestBuild(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	cfg := config.DefaultConfig().Output
	cfg.Directory = dir
	cfg.JSON = true

	var console bytes.Buffer
	m, err := Build(context.Background(), &cfg, nil, &console, false)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len()) // console, csv, log file, json

	require.NoError(t, m.Report(context.Background(), completed("a", time.Millisecond), samples(3)))
	require.NoError(t, m.Close())

	for _, name := range []string{RawFile, SummaryFile, "benchmark_results.log", JSONFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	assert.Contains(t, console.String(), "[ ok ] a")
}

func TestBuild_StoreResultsNeedsDatabase(t *testing.T) {
	cfg := config.DefaultConfig().Output
	cfg.Directory = t.TempDir()
	cfg.StoreResults = true

	_, err := Build(context.Background(), &cfg, nil, &bytes.Buffer{}, false)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "run.log"), outputPath("logs", "run.log"))
	assert.Equal(t, "/var/log/run.log", outputPath("logs", "/var/log/run.log"))
}
