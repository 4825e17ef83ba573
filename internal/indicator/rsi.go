package indicator

import (
	"fmt"
	"math"

	"ta-streamv1/internal/model"
)

// rsiPhase names the RSI state machine phases. The transition order is
// strictly seeding → seedReady → active; it never runs backwards, though
// the last seeding bar may still be repainted before the active transition.
type rsiPhase int

const (
	// rsiSeeding accumulates the first Length price changes into plain sums.
	rsiSeeding rsiPhase = iota
	// rsiSeedReady has a complete seed and a pending Wilder transition:
	// the next advance starts smoothing, repaints still adjust the sums.
	rsiSeedReady
	// rsiActive applies Wilder's recurrence on every call.
	rsiActive
)

// RSI computes the Relative Strength Index with Wilder's smoothing on a
// 0–100 scale.
//
// The first Length price changes are averaged with a plain mean (skipping
// the very first bar, which has no previous price). After seeding, gains
// and losses are smoothed with decay 1/Length:
//
//	avgGain = (prevAvgGain·(Length−1) + gain) / Length
//	avgLoss = (prevAvgLoss·(Length−1) + loss) / Length
//	RSI     = 100·avgGain / (avgGain + avgLoss)
//
// Repainting a forming bar recomputes only that bar's contribution: during
// seeding the last-added gain/loss is backed out of the sums exactly, and
// while active the recurrence reuses the averages from before the bar was
// first applied.
type RSI struct {
	cfg   Config
	phase rsiPhase

	// Seeding state. prevGain/prevLoss cache exactly what the current bar
	// last contributed, enabling exact reversal on repaint.
	sumGain  float64
	sumLoss  float64
	prevGain float64
	prevLoss float64
	seenBars int

	// Active state.
	prevAvgGain float64
	prevAvgLoss float64
	avgGain     float64
	avgLoss     float64

	prevPrice    float64
	curPrice     float64
	curClose     float64
	hasCurClose  bool
	prevClose    float64
	hasPrevClose bool

	lastSeq    uint64
	hasLastSeq bool

	recip     float64 // 1 / Length
	lenMinus1 float64
	current   float64
	ok        bool
}

// NewRSI creates an RSI from cfg. Panics if cfg is invalid.
func NewRSI(cfg Config) *RSI {
	cfg.validate("RSI")
	return &RSI{
		cfg:       cfg,
		recip:     1 / float64(cfg.Length),
		lenMinus1: float64(cfg.Length - 1),
	}
}

// Compute feeds a bar and returns the updated index.
// ok is false until Length+1 bars have been seen (Length price changes).
func (r *RSI) Compute(b model.Bar) (float64, bool) {
	checkSeq(r.hasLastSeq, r.lastSeq, b.Seq)
	advance := !r.hasLastSeq || b.Seq > r.lastSeq

	if advance {
		if r.hasCurClose {
			r.prevClose = r.curClose
			r.hasPrevClose = true
		}
		r.prevPrice = r.curPrice
		r.lastSeq = b.Seq
		r.hasLastSeq = true
	}

	price := r.cfg.Source.Extract(b, r.prevClose, r.hasPrevClose)
	r.curPrice = price
	r.curClose = b.Close
	r.hasCurClose = true

	switch r.phase {
	case rsiSeeding:
		if advance {
			// The very first bar has no previous price, no change yet.
			if r.seenBars > 0 {
				r.prevGain, r.prevLoss = gainAndLoss(r.prevPrice, price)
				r.sumGain += r.prevGain
				r.sumLoss += r.prevLoss
			}
			r.seenBars++
		} else if r.seenBars > 1 {
			r.repaintSeed(price)
		}

		if r.seenBars > r.cfg.Length {
			r.phase = rsiSeedReady
			r.current = rsiFromAverages(r.sumGain*r.recip, r.sumLoss*r.recip)
			r.ok = true
		}

	case rsiSeedReady:
		if advance {
			// First Wilder-smoothed step; the plain-mean seed becomes the
			// previous averages.
			r.prevAvgGain = r.sumGain * r.recip
			r.prevAvgLoss = r.sumLoss * r.recip
			gain, loss := gainAndLoss(r.prevPrice, price)
			r.avgGain = math.FMA(r.prevAvgGain, r.lenMinus1, gain) * r.recip
			r.avgLoss = math.FMA(r.prevAvgLoss, r.lenMinus1, loss) * r.recip
			r.phase = rsiActive
			r.current = rsiFromAverages(r.avgGain, r.avgLoss)
		} else {
			// Transition bar repainted before the advance: still seeding.
			r.repaintSeed(price)
			r.current = rsiFromAverages(r.sumGain*r.recip, r.sumLoss*r.recip)
		}

	case rsiActive:
		if advance {
			r.prevAvgGain = r.avgGain
			r.prevAvgLoss = r.avgLoss
		}
		gain, loss := gainAndLoss(r.prevPrice, price)
		r.avgGain = math.FMA(r.prevAvgGain, r.lenMinus1, gain) * r.recip
		r.avgLoss = math.FMA(r.prevAvgLoss, r.lenMinus1, loss) * r.recip
		r.current = rsiFromAverages(r.avgGain, r.avgLoss)
	}

	return r.Value()
}

// repaintSeed swaps the current bar's recorded gain/loss contribution for
// a freshly computed one.
func (r *RSI) repaintSeed(price float64) {
	gain, loss := gainAndLoss(r.prevPrice, price)
	r.sumGain = r.sumGain - r.prevGain + gain
	r.sumLoss = r.sumLoss - r.prevLoss + loss
	r.prevGain = gain
	r.prevLoss = loss
}

// Value returns the value of the last Compute call without consuming input.
func (r *RSI) Value() (float64, bool) {
	return r.current, r.ok
}

// Clone returns a fully independent copy of the indicator mid-stream.
func (r *RSI) Clone() *RSI {
	c := *r
	return &c
}

func (r *RSI) String() string {
	return fmt.Sprintf("RSI(%d, %s)", r.cfg.Length, r.cfg.Source)
}

func gainAndLoss(prevPrice, price float64) (gain, loss float64) {
	change := price - prevPrice
	return math.Max(change, 0), math.Max(-change, 0)
}

// rsiFromAverages maps average gain/loss to the 0–100 index. Flat price
// (both averages zero) reads as the neutral 50 rather than 0/0.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	sum := avgGain + avgLoss
	if sum == 0 {
		return 50.0
	}
	return 100 * avgGain / sum
}
