package model

import "encoding/json"

// Update holds one computed indicator value for publishing.
type Update struct {
	Name  string  `json:"name"` // e.g. "SMA_20", "RSI_14", "BB_20_upper"
	Seq   uint64  `json:"seq"`  // sequence marker of the bar that produced it
	Value float64 `json:"value"`
	Ready bool    `json:"ready"` // true once the indicator has converged
	Live  bool    `json:"live"`  // true when produced by a repaint of a forming bar
}

// LatestKey returns the Redis key holding the latest value: "ind:latest:{name}".
func (u *Update) LatestKey() string {
	return "ind:latest:" + u.Name
}

// Channel returns the Redis PubSub channel for this update: "pub:ind:{name}".
func (u *Update) Channel() string {
	return "pub:ind:" + u.Name
}

// JSON returns the JSON-encoded update.
func (u *Update) JSON() []byte {
	data, _ := json.Marshal(u)
	return data
}
