package indicator

import (
	"ta-streamv1/internal/model"
	"ta-streamv1/internal/ringbuf"
)

// priceWindow is the sliding window of extracted prices shared by SMA and
// Bollinger Bands. It keeps a running sum (and, when trackSquares is set, a
// running sum of squares) so aggregates update in O(1) per bar.
//
// On an advance the oldest price is evicted once the window is full; on a
// repaint the most recently pushed price is swapped out instead, so a
// forming bar can be revised any number of times without skewing the
// window.
type priceWindow struct {
	size   int
	win    *ringbuf.Ring
	source Source

	// Running aggregates, maintained incrementally via add/subtract. May
	// accumulate FP rounding drift over very long runs, negligible for
	// typical window sizes on financial data.
	sum          float64
	sumSquares   float64
	trackSquares bool

	// Close bookkeeping for SourceTrueRange: curClose becomes prevClose
	// when a bar completes. curClose updates on every add, open or closed
	// tick, so the next advance sees the correct prior close even before
	// the window fills.
	curClose     float64
	hasCurClose  bool
	prevClose    float64
	hasPrevClose bool

	lastSeq    uint64
	hasLastSeq bool
}

func newPriceWindow(size int, source Source, trackSquares bool) priceWindow {
	return priceWindow{
		size:         size,
		win:          ringbuf.New(size),
		source:       source,
		trackSquares: trackSquares,
	}
}

// add feeds one bar, the sole mutator.
func (w *priceWindow) add(b model.Bar) {
	checkSeq(w.hasLastSeq, w.lastSeq, b.Seq)

	advance := !w.hasLastSeq || b.Seq > w.lastSeq
	if advance {
		// The previous bar is final: its close becomes prevClose.
		if w.hasCurClose {
			w.prevClose = w.curClose
			w.hasPrevClose = true
		}
		w.lastSeq = b.Seq
		w.hasLastSeq = true
	}

	price := w.source.Extract(b, w.prevClose, w.hasPrevClose)
	w.curClose = b.Close
	w.hasCurClose = true

	if advance {
		if old, evicted := w.win.Push(price); evicted {
			w.sum -= old
			if w.trackSquares {
				w.sumSquares -= old * old
			}
		}
	} else if w.win.Len() > 0 {
		old := w.win.Replace(price)
		w.sum -= old
		if w.trackSquares {
			w.sumSquares -= old * old
		}
	}

	w.sum += price
	if w.trackSquares {
		w.sumSquares += price * price
	}
}

func (w *priceWindow) ready() bool { return w.win.Ready() }

// total returns the running sum once the window is full.
func (w *priceWindow) total() (float64, bool) {
	if !w.ready() {
		return 0, false
	}
	return w.sum, true
}

// totalSquares returns the running sum of squares once the window is full.
// Only valid on a window constructed with trackSquares.
func (w *priceWindow) totalSquares() (float64, bool) {
	if !w.trackSquares {
		panic("indicator: window does not track sum of squares")
	}
	if !w.ready() {
		return 0, false
	}
	return w.sumSquares, true
}

// clone returns an independent deep copy.
func (w *priceWindow) clone() priceWindow {
	c := *w
	c.win = w.win.Clone()
	return c
}
