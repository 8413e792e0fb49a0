package models

import "encoding/json"

// ImportConfig is a persisted import definition as returned by the action API.
type ImportConfig struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Platform            string            `json:"platform"`
	OrganizationMapping map[string]string `json:"organization_mapping,omitempty"`
	RunAt               string            `json:"run_at,omitempty"` // cron-like schedule
	IsActive            bool              `json:"is_active"`
	OtherConfig         json.RawMessage   `json:"other_config,omitempty"`
}
