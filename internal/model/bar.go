// Package model defines the data types shared across the bar pipeline.
package model

import "encoding/json"

// Bar represents one OHLCV sample with an opaque sequence marker.
//
// Seq orders bars: consecutive Compute calls with the same Seq repaint the
// current (still forming) bar; a strictly greater Seq closes it and opens a
// new one. Seq must never decrease between calls to the same indicator
// instance. It is a plain sequence number, not wall-clock time.
type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"` // zero when the feed carries no volume
	Seq    uint64  `json:"seq"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}
