package types

import "time"

// ToMillis converts a duration to whole milliseconds, truncating.
func ToMillis(d time.Duration) int64 {
	return d.Milliseconds()
}

// ToNanos converts a duration to nanoseconds.
func ToNanos(d time.Duration) int64 {
	return d.Nanoseconds()
}

// ToMillisFloat converts a duration to fractional milliseconds for display.
func ToMillisFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
