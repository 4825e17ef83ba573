package indstream

import (
	"fmt"

	"ta-streamv1/internal/indicator"
	"ta-streamv1/internal/model"
)

// bound wraps one configured indicator behind a uniform update-producing
// surface. Scalar indicators emit a single update per bar tick; Bollinger
// Bands fan out into three named series ("_upper", "_middle", "_lower").
type bound struct {
	name string

	sma *indicator.SMA
	ema *indicator.EMA
	rsi *indicator.RSI
	bb  *indicator.BB
}

// build constructs the indicator an IndicatorSpec describes.
func build(spec IndicatorSpec) (*bound, error) {
	b := &bound{name: spec.Name()}
	cfg := indicator.Config{Length: spec.Length, Source: spec.Source}

	switch spec.Type {
	case "SMA":
		b.sma = indicator.NewSMA(cfg)
	case "EMA":
		b.ema = indicator.NewEMA(indicator.EMAConfig{
			Length:             spec.Length,
			Source:             spec.Source,
			EnforceConvergence: spec.Strict,
		})
	case "RSI":
		b.rsi = indicator.NewRSI(cfg)
	case "BB":
		b.bb = indicator.NewBB(indicator.BBConfig{
			Length: spec.Length,
			Source: spec.Source,
			StdDev: spec.StdDev,
		})
	default:
		return nil, fmt.Errorf("unknown indicator type %q", spec.Type)
	}
	return b, nil
}

// String names the underlying indicator, e.g. "RSI(14, Close)".
func (b *bound) String() string {
	switch {
	case b.sma != nil:
		return b.sma.String()
	case b.ema != nil:
		return b.ema.String()
	case b.rsi != nil:
		return b.rsi.String()
	default:
		return b.bb.String()
	}
}

// apply feeds a bar tick and returns live updates for the forming bar.
func (b *bound) apply(bar model.Bar) []model.Update {
	switch {
	case b.sma != nil:
		v, ok := b.sma.Compute(bar)
		return []model.Update{{Name: b.name, Seq: bar.Seq, Value: v, Ready: ok, Live: true}}
	case b.ema != nil:
		v, ok := b.ema.Compute(bar)
		return []model.Update{{Name: b.name, Seq: bar.Seq, Value: v, Ready: ok, Live: true}}
	case b.rsi != nil:
		v, ok := b.rsi.Compute(bar)
		return []model.Update{{Name: b.name, Seq: bar.Seq, Value: v, Ready: ok, Live: true}}
	default:
		v, ok := b.bb.Compute(bar)
		return b.fanOut(bar.Seq, v, ok, true)
	}
}

// confirm reads the values as of the last tick of bar seq, which has just
// been closed by an advance, and returns them as confirmed updates.
func (b *bound) confirm(seq uint64) []model.Update {
	switch {
	case b.sma != nil:
		v, ok := b.sma.Value()
		return []model.Update{{Name: b.name, Seq: seq, Value: v, Ready: ok}}
	case b.ema != nil:
		v, ok := b.ema.Value()
		return []model.Update{{Name: b.name, Seq: seq, Value: v, Ready: ok}}
	case b.rsi != nil:
		v, ok := b.rsi.Value()
		return []model.Update{{Name: b.name, Seq: seq, Value: v, Ready: ok}}
	default:
		v, ok := b.bb.Value()
		return b.fanOut(seq, v, ok, false)
	}
}

func (b *bound) fanOut(seq uint64, v indicator.BBValue, ok, live bool) []model.Update {
	return []model.Update{
		{Name: b.name + "_upper", Seq: seq, Value: v.Upper, Ready: ok, Live: live},
		{Name: b.name + "_middle", Seq: seq, Value: v.Middle, Ready: ok, Live: live},
		{Name: b.name + "_lower", Seq: seq, Value: v.Lower, Ready: ok, Live: live},
	}
}
