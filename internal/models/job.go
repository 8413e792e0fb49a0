package models

import "time"

// ImportJob is one execution of an import config. IsRunning is true while
// the job is in a panel's running set.
type ImportJob struct {
	ID             string    `json:"id"`
	ImportConfigID string    `json:"import_config_id"`
	RunAt          time.Time `json:"run_at"`
	RunBy          string    `json:"run_by"`
	IsRunning      bool      `json:"is_running"`
}

// ImportProgress is replaced wholesale on every progress_update.
type ImportProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns the integer completion percentage (0 when total is unknown).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := p.Current * 100 / p.Total
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
