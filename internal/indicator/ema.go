package indicator

import (
	"fmt"
	"math"

	"ta-streamv1/internal/model"
)

// EMAConfig configures an Exponential Moving Average.
type EMAConfig struct {
	// Length is the window length in bars. Required, must be positive.
	Length int
	// Source is the price extracted from each bar. Zero value is SourceClose.
	Source Source
	// EnforceConvergence withholds output until the SMA seed's contribution
	// has decayed below 1%, which takes 3·(Length+1) bars. Without it,
	// values appear as soon as the seed is ready (Length bars).
	EnforceConvergence bool
}

// BarsToConverge returns the number of completed bars before output is
// exposed: Length without enforcement, 3·(Length+1) with it.
func (c EMAConfig) BarsToConverge() int {
	if c.EnforceConvergence {
		return 3 * (c.Length + 1)
	}
	return c.Length
}

// EMA computes an Exponential Moving Average with smoothing factor
// α = 2 / (Length + 1):
//
//	EMA = α·price + (1−α)·prevEMA
//
// The first Length bars seed the average with an embedded SMA; the SMA is
// then discarded and the EMA runs with constant memory per tick via a
// single fused multiply-add.
//
// A repaint recomputes from the value the EMA held before the current bar
// was first applied, so revising a forming bar is idempotent.
type EMA struct {
	cfg   EMAConfig
	sma   *SMA // non-nil only while seeding; never restored once dropped
	alpha float64

	previous float64 // value entering the current bar; repaints restart here
	current  float64
	hasCur   bool

	seenBars  int // completed bars; repaints do not count
	converged bool

	curClose     float64
	hasCurClose  bool
	prevClose    float64
	hasPrevClose bool

	lastSeq    uint64
	hasLastSeq bool
}

// NewEMA creates an EMA from cfg. Panics if cfg is invalid.
func NewEMA(cfg EMAConfig) *EMA {
	Config{Length: cfg.Length, Source: cfg.Source}.validate("EMA")
	return &EMA{
		cfg:   cfg,
		alpha: 2 / float64(cfg.Length+1),
		sma:   NewSMA(Config{Length: cfg.Length, Source: cfg.Source}),
	}
}

// Compute feeds a bar and returns the updated average.
// ok is false until BarsToConverge bars have completed.
func (e *EMA) Compute(b model.Bar) (float64, bool) {
	checkSeq(e.hasLastSeq, e.lastSeq, b.Seq)
	advance := !e.hasLastSeq || b.Seq > e.lastSeq

	// Seed complete: drop the SMA on the first advance past Length bars.
	if e.sma != nil && advance && e.seenBars >= e.cfg.Length {
		e.sma = nil
	}

	if e.sma != nil {
		e.current, e.hasCur = e.sma.Compute(b)
	} else {
		if advance {
			if e.hasCurClose {
				e.prevClose = e.curClose
				e.hasPrevClose = true
			}
			e.previous = e.current
		}
		price := e.cfg.Source.Extract(b, e.prevClose, e.hasPrevClose)
		e.current = math.FMA(e.alpha, price-e.previous, e.previous)
		e.hasCur = true
	}

	if advance {
		e.lastSeq = b.Seq
		e.hasLastSeq = true
		if !e.converged {
			e.seenBars++
			if e.seenBars >= e.cfg.BarsToConverge() {
				e.converged = true
			}
		}
	}
	e.curClose = b.Close
	e.hasCurClose = true

	return e.Value()
}

// Value returns the value of the last Compute call without consuming input.
// Internal smoothing runs regardless of convergence enforcement; the flag
// only gates what is exposed here.
func (e *EMA) Value() (float64, bool) {
	if !e.converged || !e.hasCur {
		return 0, false
	}
	return e.current, true
}

// Clone returns a fully independent copy of the indicator mid-stream.
func (e *EMA) Clone() *EMA {
	c := *e
	if e.sma != nil {
		c.sma = e.sma.Clone()
	}
	return &c
}

func (e *EMA) String() string {
	return fmt.Sprintf("EMA(%d, %s)", e.cfg.Length, e.cfg.Source)
}
