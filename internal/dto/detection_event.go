package dto

import "time"

// DetectionEvent is pushed to websocket viewers after every /detect call.
type DetectionEvent struct {
	RequestID  string    `json:"requestId"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category"`
	Result     bool      `json:"result"`
	Confidence float64   `json:"confidence"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
