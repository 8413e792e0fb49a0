package models

import "encoding/json"

// Server-to-client event names on the admin-dashboard channel.
const (
	EventRunningJobs    = "running_jobs"
	EventProgressUpdate = "progress_update"
	EventLogMessage     = "log_message"
	EventFinishOne      = "finish_one"
	EventJobStarted     = "job_started"
	EventJobStopped     = "job_stopped"
	EventJobStatus      = "job_status"
)

// Client-to-server event names.
const (
	EventGetRunningJobs = "get_running_jobs"
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventGetJobStatus   = "get_job_status"
	EventStopJob        = "stop_job"
)

// Frame is the JSON envelope carried by every websocket message.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// RunningJobsPayload answers get_running_jobs.
type RunningJobsPayload struct {
	ImportConfigID string      `json:"import_config_id"`
	Jobs           []ImportJob `json:"jobs"`
}

// ProgressPayload carries a progress_update.
type ProgressPayload struct {
	JobID string `json:"job_id"`
	ImportProgress
}

// LogPayload carries a log_message.
type LogPayload struct {
	JobID string `json:"job_id"`
	LogLine
}

// FinishOnePayload carries a finish_one.
type FinishOnePayload struct {
	JobID string `json:"job_id"`
	FinishedRecord
}

// JobEventPayload carries job_started / job_stopped.
type JobEventPayload struct {
	JobID          string     `json:"job_id"`
	ImportConfigID string     `json:"import_config_id"`
	Job            *ImportJob `json:"job,omitempty"`
}

// JobRef is the payload of subscribe, unsubscribe, get_job_status and stop_job.
type JobRef struct {
	JobID string `json:"job_id"`
}

// ConfigRef is the payload of get_running_jobs.
type ConfigRef struct {
	ImportConfigID string `json:"import_config_id"`
}

// JobStatus is the one-shot snapshot answering get_job_status.
type JobStatus struct {
	JobID    string           `json:"job_id"`
	Progress ImportProgress   `json:"progress"`
	Logs     []LogLine        `json:"logs"`
	Finished []FinishedRecord `json:"finished"`
}
