package models

import "time"

// JobArchive is a stopped job as the operator last saw it.
type JobArchive struct {
	JobID          string           `json:"job_id"`
	ImportConfigID string           `json:"import_config_id"`
	RunBy          string           `json:"run_by"`
	RunAt          time.Time        `json:"run_at"`
	StoppedAt      time.Time        `json:"stopped_at"`
	Progress       ImportProgress   `json:"progress"`
	LogCount       int              `json:"log_count"`
	RecordCount    int              `json:"record_count"`
	Logs           []LogLine        `json:"logs,omitempty"`
	Finished       []FinishedRecord `json:"finished,omitempty"`
}
