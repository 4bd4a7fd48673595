// Package util contains misc internal utilities.
package util

import (
	"math"
	"time"
)

// Linspace returns n evenly spaced values over [start, end], both endpoints
// included.  n < 2 returns a single-element slice holding start.
func Linspace(start, end float64, n int) []float64 {
	if n < 2 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = start + float64(i)*step
	}
	// pin the endpoint, accumulated error would otherwise leave it short
	out[n-1] = end
	return out
}

// Arange returns values from start to end (exclusive) spaced by step.
// e.g., Arange(0, 1, 0.25) => [0 0.25 0.5 0.75]
func Arange(start, end, step float64) []float64 {
	n := int(math.Ceil((end - start) / step))
	if n < 0 {
		n = 0
	}
	out := make([]float64, 0, n)
	for v := start; v < end; v += step {
		out = append(out, v)
	}
	return out
}

// Clamp limits x to low < x < high
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// SecsToDuration converts a floating point number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
