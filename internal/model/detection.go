package model

import "time"

// Detection is one /detect request as kept in the history table.
type Detection struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category"`
	Result     bool      `json:"result"`
	Confidence float64   `json:"confidence"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DetectionFilter narrows history queries.
type DetectionFilter struct {
	Category string
	Result   *bool
	Since    time.Time
	Limit    int
	Offset   int
}

// DetectionStats summarizes the history table.
type DetectionStats struct {
	Total       int            `json:"total"`
	Failed      int            `json:"failed"`
	Positive    map[string]int `json:"positive"`
	PerCategory map[string]int `json:"per_category"`
}
