package indicator

import (
	"encoding/csv"
	"os"
	"strconv"
	"testing"

	"ta-streamv1/internal/model"
)

// referenceRow is one line of testdata/reference.csv: a close price and the
// batch-computed indicator values, blank until the indicator is warm.
type referenceRow struct {
	seq   uint64
	close float64

	sma10, ema10, rsi14        float64
	hasSMA, hasEMA, hasRSI     bool
	bbUpper, bbMiddle, bbLower float64
	hasBB                      bool
}

func loadReference(t *testing.T) []referenceRow {
	t.Helper()
	f, err := os.Open("testdata/reference.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	parse := func(s string) (float64, bool) {
		if s == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			t.Fatal(err)
		}
		return v, true
	}

	rows := make([]referenceRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		seq, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			t.Fatal(err)
		}
		var r referenceRow
		r.seq = seq
		r.close, _ = parse(rec[1])
		r.sma10, r.hasSMA = parse(rec[2])
		r.ema10, r.hasEMA = parse(rec[3])
		r.rsi14, r.hasRSI = parse(rec[4])
		r.bbUpper, r.hasBB = parse(rec[5])
		r.bbMiddle, _ = parse(rec[6])
		r.bbLower, _ = parse(rec[7])
		rows = append(rows, r)
	}
	return rows
}

// TestReferenceSeries replays a 300-bar random walk against batch-computed
// expectations (see testdata/gen_reference.py). The streaming engines use
// incremental sums and fused multiply-adds, so values agree with the batch
// math to rounding, not bit-exactly.
func TestReferenceSeries(t *testing.T) {
	rows := loadReference(t)

	sma := NewSMA(Config{Length: 10})
	ema := NewEMA(EMAConfig{Length: 10})
	rsi := NewRSI(Config{Length: 14})
	bb := NewBB(NewBBConfig(20))

	for _, r := range rows {
		b := model.Bar{Open: r.close, High: r.close, Low: r.close, Close: r.close, Seq: r.seq}

		sv, sok := sma.Compute(b)
		if sok != r.hasSMA {
			t.Fatalf("seq %d: SMA ok=%v, want %v", r.seq, sok, r.hasSMA)
		}
		if sok {
			assertClose(t, "SMA(10)", sv, r.sma10, 1e-8)
		}

		ev, eok := ema.Compute(b)
		if eok != r.hasEMA {
			t.Fatalf("seq %d: EMA ok=%v, want %v", r.seq, eok, r.hasEMA)
		}
		if eok {
			assertClose(t, "EMA(10)", ev, r.ema10, 1e-8)
		}

		rv, rok := rsi.Compute(b)
		if rok != r.hasRSI {
			t.Fatalf("seq %d: RSI ok=%v, want %v", r.seq, rok, r.hasRSI)
		}
		if rok {
			assertClose(t, "RSI(14)", rv, r.rsi14, 1e-6)
		}

		bv, bok := bb.Compute(b)
		if bok != r.hasBB {
			t.Fatalf("seq %d: BB ok=%v, want %v", r.seq, bok, r.hasBB)
		}
		if bok {
			assertClose(t, "BB upper", bv.Upper, r.bbUpper, 1e-6)
			assertClose(t, "BB middle", bv.Middle, r.bbMiddle, 1e-6)
			assertClose(t, "BB lower", bv.Lower, r.bbLower, 1e-6)
		}
	}
}
