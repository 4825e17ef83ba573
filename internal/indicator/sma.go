package indicator

import (
	"fmt"

	"ta-streamv1/internal/model"
)

// SMA computes a Simple Moving Average: the unweighted mean of the last
// Length extracted prices. Output is withheld until the window is full.
//
// Updates are O(1) via the window's running sum. Feeding a bar with the
// same Seq repaints the current value without advancing the window.
type SMA struct {
	cfg     Config
	window  priceWindow
	recip   float64 // 1 / Length, mean = sum * recip
	current float64
	ok      bool
}

// NewSMA creates an SMA from cfg. Panics if cfg is invalid.
func NewSMA(cfg Config) *SMA {
	cfg.validate("SMA")
	return &SMA{
		cfg:    cfg,
		window: newPriceWindow(cfg.Length, cfg.Source, false),
		recip:  1 / float64(cfg.Length),
	}
}

// Compute feeds a bar and returns the updated average.
// ok is false until the window has seen Length completed-or-forming bars.
func (s *SMA) Compute(b model.Bar) (float64, bool) {
	s.window.add(b)
	if sum, ready := s.window.total(); ready {
		s.current, s.ok = sum*s.recip, true
	}
	return s.Value()
}

// Value returns the value of the last Compute call without consuming input.
func (s *SMA) Value() (float64, bool) {
	return s.current, s.ok
}

// Clone returns a fully independent copy of the indicator mid-stream.
func (s *SMA) Clone() *SMA {
	c := *s
	c.window = s.window.clone()
	return &c
}

func (s *SMA) String() string {
	return fmt.Sprintf("SMA(%d, %s)", s.cfg.Length, s.cfg.Source)
}
