package indicator

import (
	"testing"

	"ta-streamv1/internal/model"
)

func TestSource_Extract(t *testing.T) {
	b := model.Bar{Open: 10, High: 14, Low: 8, Close: 12, Seq: 1}

	cases := []struct {
		source Source
		want   float64
	}{
		{SourceClose, 12},
		{SourceOpen, 10},
		{SourceHigh, 14},
		{SourceLow, 8},
		{SourceHL2, 11},
		{SourceHLC3, (14.0 + 8 + 12) / 3},
		{SourceOHLC4, 11},
		{SourceHLCC4, (14.0 + 8 + 12 + 12) / 4},
	}
	for _, c := range cases {
		got := c.source.Extract(b, 0, false)
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.source, got, c.want)
		}
	}
}

func TestSource_TrueRange(t *testing.T) {
	b := model.Bar{Open: 10, High: 14, Low: 8, Close: 12, Seq: 2}

	// No previous close: plain high−low.
	if got := SourceTrueRange.Extract(b, 0, false); got != 6 {
		t.Errorf("TR without prev close: got %v, want 6", got)
	}
	// Gap down: |high − prevClose| dominates.
	if got := SourceTrueRange.Extract(b, 20, true); got != 12 {
		t.Errorf("TR gap down: got %v, want 12", got)
	}
	// Gap up: |low − prevClose| dominates.
	if got := SourceTrueRange.Extract(b, 1, true); got != 13 {
		t.Errorf("TR gap up: got %v, want 13", got)
	}
	// Prev close inside the range: high−low wins.
	if got := SourceTrueRange.Extract(b, 11, true); got != 6 {
		t.Errorf("TR inside range: got %v, want 6", got)
	}
}

func TestSource_TrueRange_PrevCloseRollsOnAdvanceOnly(t *testing.T) {
	// A repaint of the forming bar must keep seeing the same prior close;
	// only an advance promotes the current close.
	sma := NewSMA(Config{Length: 1, Source: SourceTrueRange})

	// Bar 1: no prev close, TR = 12 − 9 = 3.
	v, _ := sma.Compute(model.Bar{Open: 10, High: 12, Low: 9, Close: 11, Seq: 1})
	assertClose(t, "TR bar 1", v, 3.0, 0.0001)

	// Bar 2: prev close 11 → max(3, |13−11|, |10−11|) = 3.
	v, _ = sma.Compute(model.Bar{Open: 11, High: 13, Low: 10, Close: 12, Seq: 2})
	assertClose(t, "TR bar 2", v, 3.0, 0.0001)

	// Repaint bar 2 with a higher high: prev close is still 11,
	// max(5, |15−11|, |10−11|) = 5.
	v, _ = sma.Compute(model.Bar{Open: 11, High: 15, Low: 10, Close: 14, Seq: 2})
	assertClose(t, "TR bar 2 repainted", v, 5.0, 0.0001)

	// Bar 3: prev close rolls to the repainted 14,
	// max(1, |14−14|, |13−14|) = 1.
	v, _ = sma.Compute(model.Bar{Open: 14, High: 14, Low: 13, Close: 13, Seq: 3})
	assertClose(t, "TR bar 3", v, 1.0, 0.0001)
}

func TestParseSource(t *testing.T) {
	cases := []struct {
		in   string
		want Source
	}{
		{"", SourceClose},
		{"close", SourceClose},
		{"Close", SourceClose},
		{" open ", SourceOpen},
		{"high", SourceHigh},
		{"low", SourceLow},
		{"hl2", SourceHL2},
		{"hlc3", SourceHLC3},
		{"ohlc4", SourceOHLC4},
		{"hlcc4", SourceHLCC4},
		{"tr", SourceTrueRange},
		{"TrueRange", SourceTrueRange},
	}
	for _, c := range cases {
		got, err := ParseSource(c.in)
		if err != nil {
			t.Errorf("ParseSource(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSource(%q): got %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseSource("vwap"); err == nil {
		t.Error("ParseSource(\"vwap\"): expected error")
	}
}

func TestSource_String(t *testing.T) {
	if got := SourceHLC3.String(); got != "HLC3" {
		t.Errorf("got %q, want HLC3", got)
	}
	if got := Source(99).String(); got != "Source(99)" {
		t.Errorf("unknown source: got %q", got)
	}
}
