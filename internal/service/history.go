package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"import_panel/internal/models"
	"import_panel/internal/repository"
)

type HistoryService struct {
	jobs    repository.JobRepo
	logs    repository.LogRepo
	records repository.RecordRepo
}

func NewHistoryService(jobs repository.JobRepo, logs repository.LogRepo, records repository.RecordRepo) *HistoryService {
	return &HistoryService{jobs: jobs, logs: logs, records: records}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	errEmptyJobID       = errors.New("job id is required")

	// ErrInvalidFilter wraps every rejected query parameter.
	ErrInvalidFilter = errors.New("invalid filter")
)

var logLevels = map[string]bool{"debug": true, "info": true, "warning": true, "error": true}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeLevel lowercases a level filter; "warn" is accepted for "warning".
func normalizeLevel(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warn" {
		s = "warning"
	}
	if s != "" && !logLevels[s] {
		return "", fmt.Errorf("%w: unknown log level %q", ErrInvalidFilter, s)
	}
	return s, nil
}

func normalizeAndValidateFilter(f HistoryFilter) (HistoryFilter, error) {
	out := HistoryFilter{
		ConfigID: strings.TrimSpace(f.ConfigID),
		From:     normalizeToUTC(f.From),
		To:       normalizeToUTC(f.To),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return HistoryFilter{}, fmt.Errorf("%w: %w", ErrInvalidFilter, errInvalidTimeRange)
	}
	return out, nil
}

func (s *HistoryService) List(ctx context.Context, f HistoryFilter) ([]models.JobArchive, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.jobs.ListJobs(ctx, f.ConfigID, f.From, f.To)
}

// Get returns repository.ErrNotFound for jobs that were never archived.
func (s *HistoryService) Get(ctx context.Context, jobID string) (models.JobArchive, error) {
	if jobID = strings.TrimSpace(jobID); jobID == "" {
		return models.JobArchive{}, fmt.Errorf("%w: %w", ErrInvalidFilter, errEmptyJobID)
	}
	return s.jobs.GetJob(ctx, jobID)
}

func (s *HistoryService) Logs(ctx context.Context, jobID, level string) ([]models.LogLine, error) {
	lvl, err := normalizeLevel(level)
	if err != nil {
		return nil, err
	}
	return s.logs.List(ctx, strings.TrimSpace(jobID), lvl)
}

func (s *HistoryService) Records(ctx context.Context, jobID, typ string) ([]models.FinishedRecord, error) {
	rt, err := models.ParseRecordType(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return s.records.List(ctx, strings.TrimSpace(jobID), rt)
}
