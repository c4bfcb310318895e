// Package report writes benchmark summaries to CSV files, a text log, the
// console, JSON and a database table. Every writer is a types.Sink; Multi
// fans one summary out to all of them.
package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// collector keeps the summaries a sink renders on Close.
type collector struct {
	summaries []types.Summary
}

func (c *collector) add(s types.Summary) {
	c.summaries = append(c.summaries, s)
}

// byMedian returns summaries with at least one completed trial sorted by
// median, followed by the ones that produced nothing, in run order.
func byMedian(summaries []types.Summary) []types.Summary {
	var ranked, empty []types.Summary
	for _, s := range summaries {
		if s.CompletedRuns > 0 {
			ranked = append(ranked, s)
		} else {
			empty = append(empty, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Median < ranked[j].Median
	})
	return append(ranked, empty...)
}

// fastestMedian returns the smallest median among strategies with samples.
func fastestMedian(summaries []types.Summary) time.Duration {
	var fastest time.Duration
	for _, s := range summaries {
		if s.CompletedRuns == 0 {
			continue
		}
		if fastest == 0 || s.Median < fastest {
			fastest = s.Median
		}
	}
	return fastest
}

// speedup is how many times slower d is than fastest.
func speedup(d, fastest time.Duration) float64 {
	if fastest <= 0 || d <= 0 {
		return 1
	}
	return float64(d) / float64(fastest)
}

// millis formats d as milliseconds with microsecond precision.
func millis(d time.Duration) string {
	return strconv.FormatFloat(types.ToMillisFloat(d), 'f', 3, 64)
}

// sanitizeDescription keeps descriptions on one CSV-friendly line.
func sanitizeDescription(s string) string {
	s = strings.ReplaceAll(s, ",", ";")
	return strings.ReplaceAll(s, "\n", " ")
}

// round trims durations for display.
func round(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Microsecond).String()
	default:
		return d.String()
	}
}
