package indicator

import (
	"fmt"
	"math"

	"ta-streamv1/internal/model"
)

// DefaultStdDev is the conventional Bollinger band width multiplier.
const DefaultStdDev = 2.0

// BBConfig configures a Bollinger Bands indicator.
type BBConfig struct {
	// Length is the window length in bars. Required, must be positive.
	Length int
	// Source is the price extracted from each bar. Zero value is SourceClose.
	Source Source
	// StdDev is the band offset in population standard deviations.
	// Must be positive and finite.
	StdDev float64
}

// NewBBConfig returns the standard BB(length, Close, 2σ) configuration.
func NewBBConfig(length int) BBConfig {
	return BBConfig{Length: length, StdDev: DefaultStdDev}
}

// BBValue is one Bollinger Bands output.
//
//	Upper  = mean + k·σ
//	Middle = mean
//	Lower  = mean − k·σ
type BBValue struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Width returns Upper − Lower, a volatility measure. Never negative.
func (v BBValue) Width() float64 { return v.Upper - v.Lower }

func (v BBValue) String() string {
	return fmt.Sprintf("BB(u: %g, m: %g, l: %g)", v.Upper, v.Middle, v.Lower)
}

// BB computes Bollinger Bands: an SMA middle band with upper and lower
// bands offset by StdDev population standard deviations.
//
// Updates are O(1) via the window's running sum and sum of squares; the
// only non-constant operation is the sqrt. Repaint semantics follow the
// shared sliding window.
type BB struct {
	cfg     BBConfig
	window  priceWindow
	recip   float64
	current BBValue
	ok      bool
}

// NewBB creates a Bollinger Bands indicator from cfg.
// Panics if cfg is invalid (non-positive length, or a StdDev that is
// NaN, infinite, zero or negative).
func NewBB(cfg BBConfig) *BB {
	Config{Length: cfg.Length, Source: cfg.Source}.validate("BB")
	if math.IsNaN(cfg.StdDev) || math.IsInf(cfg.StdDev, 0) || cfg.StdDev <= 0 {
		panic(fmt.Sprintf("indicator: BB std dev multiplier must be positive and finite, got %v", cfg.StdDev))
	}
	return &BB{
		cfg:    cfg,
		window: newPriceWindow(cfg.Length, cfg.Source, true),
		recip:  1 / float64(cfg.Length),
	}
}

// Compute feeds a bar and returns the updated bands.
// ok is false until the window is full.
func (bb *BB) Compute(b model.Bar) (BBValue, bool) {
	bb.window.add(b)

	sum, ready := bb.window.total()
	if !ready {
		return bb.Value()
	}
	sumSquares, _ := bb.window.totalSquares()

	mean := sum * bb.recip
	// Population variance: E[X²] − (E[X])². Clamped at zero — FP
	// cancellation can drive it a hair negative on near-constant input.
	variance := math.FMA(sumSquares, bb.recip, -(mean * mean))
	offset := math.Sqrt(math.Max(variance, 0)) * bb.cfg.StdDev

	bb.current = BBValue{Upper: mean + offset, Middle: mean, Lower: mean - offset}
	bb.ok = true
	return bb.Value()
}

// Value returns the value of the last Compute call without consuming input.
func (bb *BB) Value() (BBValue, bool) {
	return bb.current, bb.ok
}

// Clone returns a fully independent copy of the indicator mid-stream.
func (bb *BB) Clone() *BB {
	c := *bb
	c.window = bb.window.clone()
	return &c
}

func (bb *BB) String() string {
	return fmt.Sprintf("BB(%d, %s, %g)", bb.cfg.Length, bb.cfg.Source, bb.cfg.StdDev)
}
