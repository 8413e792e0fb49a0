package models

import "time"

// LogLine is a single job log entry pushed by the event channel.
type LogLine struct {
	Level     string    `json:"level"` // debug | info | warning | error
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
