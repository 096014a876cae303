// Package series builds the dashboard chart series from treasury snapshots.
//
// Every builder is a pure function: inputs are arguments, the returned Chart
// is freshly allocated and never shares backing arrays with its inputs.
package series

import "errors"

// DefaultRebaseRange is the number of rebases shown by the bar charts.
const DefaultRebaseRange = 14

// ErrMissingInput is returned when a builder's inputs are not available yet.
var ErrMissingInput = errors.New("missing builder input")

// Window returns a copy of the most recent n elements of s.
// A shorter s is returned whole; n <= 0 yields an empty slice.
func Window[T any](s []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	out := make([]T, len(s)-start)
	copy(out, s[start:])
	return out
}
