// Package stats reduces trial durations to summary statistics.
//
// The estimators are fixed so that published numbers stay comparable:
// the median of an even-length sequence is the mean of the two middle
// values, the standard deviation is the population form (divide by n),
// and percentiles use the nearest-rank method without interpolation.
package stats

import (
	"math"
	"slices"
	"time"
)

// Result is the reduction of one sample sequence.
type Result struct {
	Count  int
	Mean   time.Duration
	Median time.Duration
	Min    time.Duration
	Max    time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// Summarize computes all statistics over a private sorted copy of samples.
// An empty input yields the zero Result.
func Summarize(samples []time.Duration) Result {
	n := len(samples)
	if n == 0 {
		return Result{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	median := medianSorted(sorted)
	return Result{
		Count:  n,
		Mean:   Mean(sorted),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: StdDev(sorted),
		P50:    median,
		P95:    percentileSorted(sorted, 95),
		P99:    percentileSorted(sorted, 99),
	}
}

// Mean returns the arithmetic mean, truncated to whole nanoseconds.
// It falls back to float accumulation if the int64 sum would overflow.
func Mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range samples {
		if (s > 0 && sum > math.MaxInt64-int64(s)) || (s < 0 && sum < math.MinInt64-int64(s)) {
			return meanFloat(samples)
		}
		sum += int64(s)
	}
	return time.Duration(sum / int64(len(samples)))
}

func meanFloat(samples []time.Duration) time.Duration {
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	return time.Duration(sum / float64(len(samples)))
}

// Median returns the middle value, or the mean of the two middle values
// when len(samples) is even. samples need not be sorted.
func Median(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return medianSorted(sorted)
}

func medianSorted(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	// a + (b-a)/2 cannot overflow for a <= b
	return a + (b-a)/2
}

// StdDev returns the population standard deviation.
func StdDev(samples []time.Duration) time.Duration {
	n := len(samples)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(n)

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(n)))
}

// Percentile returns the nearest-rank p-th percentile: the element at
// index ceil(p/100*n)-1 of the sorted samples, clamped to [0, n-1].
func Percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []time.Duration, p float64) time.Duration {
	return sorted[rank(len(sorted), p)]
}

func rank(n int, p float64) int {
	// p*n first keeps integral ranks exact, e.g. p=99 n=100
	idx := int(math.Ceil(p*float64(n)/100)) - 1
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
