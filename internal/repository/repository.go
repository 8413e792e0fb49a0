package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"import_panel/internal/models"
)

var ErrNotFound = errors.New("not found")

type JobRepo interface {
	ArchiveJob(ctx context.Context, a models.JobArchive) error
	ListJobs(ctx context.Context, configID string, from, to time.Time) ([]models.JobArchive, error)
	GetJob(ctx context.Context, jobID string) (models.JobArchive, error)
}

type LogRepo interface {
	List(ctx context.Context, jobID, level string) ([]models.LogLine, error)
}

type RecordRepo interface {
	List(ctx context.Context, jobID string, typ models.RecordType) ([]models.FinishedRecord, error)
}

type Repository struct {
	Jobs    JobRepo
	Logs    LogRepo
	Records RecordRepo
}

func NewRepository(db *sql.DB) *Repository {
	logs := NewLogSQLite(db)
	records := NewRecordSQLite(db)
	return &Repository{
		Jobs:    NewJobSQLite(db, logs, records),
		Logs:    logs,
		Records: records,
	}
}
