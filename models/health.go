package models

import "time"

// Health statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}
