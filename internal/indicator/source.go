package indicator

import (
	"fmt"
	"math"
	"strings"

	"ta-streamv1/internal/model"
)

// Source selects which scalar an indicator computes on.
// The zero value is SourceClose.
type Source int

const (
	// SourceClose is the closing (or latest) price, the default.
	SourceClose Source = iota
	// SourceOpen is the opening price.
	SourceOpen
	// SourceHigh is the highest price.
	SourceHigh
	// SourceLow is the lowest price.
	SourceLow
	// SourceHL2 is the median price: (high + low) / 2.
	SourceHL2
	// SourceHLC3 is the typical price: (high + low + close) / 3.
	SourceHLC3
	// SourceOHLC4 is the average price: (open + high + low + close) / 4.
	SourceOHLC4
	// SourceHLCC4 is the weighted close: (high + low + close + close) / 4.
	SourceHLCC4
	// SourceTrueRange is max(high−low, |high−prevClose|, |low−prevClose|).
	// On the first bar (no previous close) it falls back to high−low.
	SourceTrueRange
)

var sourceNames = map[Source]string{
	SourceClose:     "Close",
	SourceOpen:      "Open",
	SourceHigh:      "High",
	SourceLow:       "Low",
	SourceHL2:       "HL2",
	SourceHLC3:      "HLC3",
	SourceOHLC4:     "OHLC4",
	SourceHLCC4:     "HLCC4",
	SourceTrueRange: "TrueRange",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ParseSource maps a config token ("close", "hl2", "tr", ...) to a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "close":
		return SourceClose, nil
	case "open":
		return SourceOpen, nil
	case "high":
		return SourceHigh, nil
	case "low":
		return SourceLow, nil
	case "hl2":
		return SourceHL2, nil
	case "hlc3":
		return SourceHLC3, nil
	case "ohlc4":
		return SourceOHLC4, nil
	case "hlcc4":
		return SourceHLCC4, nil
	case "tr", "truerange":
		return SourceTrueRange, nil
	}
	return SourceClose, fmt.Errorf("unknown price source %q", s)
}

// Extract pulls the configured scalar out of a bar. prevClose is the close
// of the last completed bar and is consulted only by SourceTrueRange;
// hasPrev is false until a bar has completed.
func (s Source) Extract(b model.Bar, prevClose float64, hasPrev bool) float64 {
	switch s {
	case SourceOpen:
		return b.Open
	case SourceHigh:
		return b.High
	case SourceLow:
		return b.Low
	case SourceHL2:
		return (b.High + b.Low) / 2
	case SourceHLC3:
		return (b.High + b.Low + b.Close) / 3
	case SourceOHLC4:
		return (b.Open + b.High + b.Low + b.Close) / 4
	case SourceHLCC4:
		return (b.High + b.Low + b.Close + b.Close) / 4
	case SourceTrueRange:
		hl := b.High - b.Low
		if !hasPrev {
			return hl
		}
		hc := math.Abs(b.High - prevClose)
		lc := math.Abs(b.Low - prevClose)
		return math.Max(hl, math.Max(hc, lc))
	default:
		return b.Close
	}
}
