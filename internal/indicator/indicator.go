// Package indicator provides streaming technical indicators over OHLCV bars.
//
// Indicators are fed one bar at a time through Compute and keep O(1) running
// state — no history scans, no allocation per call. Output is withheld
// (ok=false) until the indicator has converged per its warm-up rule.
//
// Bar boundaries are detected from the bar's Seq marker: a call with the
// same Seq as the previous call repaints the current (still forming) bar,
// recomputing its contribution in place; a strictly greater Seq finalizes
// the bar and advances the indicator. Seq must never decrease — indicators
// panic on a decreasing marker rather than silently corrupt their
// aggregates.
package indicator

import "fmt"

// Config holds the shared parameters of an indicator.
type Config struct {
	// Length is the window length in bars. Required, must be positive.
	Length int
	// Source is the price extracted from each bar. Zero value is SourceClose.
	Source Source
}

// validate panics on an invalid config. Constructing an indicator with an
// invalid config is a programmer error, not a runtime condition.
func (c Config) validate(name string) {
	if c.Length < 1 {
		panic(fmt.Sprintf("indicator: %s length must be positive, got %d", name, c.Length))
	}
}

func checkSeq(hasLast bool, last, got uint64) {
	if hasLast && got < last {
		panic(fmt.Sprintf("indicator: bar Seq must be non-decreasing: last=%d, got=%d", last, got))
	}
}
