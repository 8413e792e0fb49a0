package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"import_panel/internal/models"
)

type JobSQLite struct {
	db      *sql.DB
	logs    LogRepo
	records RecordRepo
}

func NewJobSQLite(db *sql.DB, logs LogRepo, records RecordRepo) *JobSQLite {
	return &JobSQLite{db: db, logs: logs, records: records}
}

var _ JobRepo = (*JobSQLite)(nil)

const (
	upsertJobSQL = `
		INSERT INTO job_runs (id, import_config_id, run_by, run_at, stopped_at, progress_current, progress_total, log_count, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			import_config_id=excluded.import_config_id,
			run_by=excluded.run_by,
			run_at=excluded.run_at,
			stopped_at=excluded.stopped_at,
			progress_current=excluded.progress_current,
			progress_total=excluded.progress_total,
			log_count=excluded.log_count,
			record_count=excluded.record_count
	`
	deleteJobLogsSQL    = `DELETE FROM job_logs WHERE job_id = ?`
	deleteJobRecordsSQL = `DELETE FROM job_records WHERE job_id = ?`
	insertJobLogSQL     = `INSERT INTO job_logs (job_id, seq, level, message, logged_at) VALUES (?, ?, ?, ?, ?)`
	insertJobRecordSQL  = `INSERT INTO job_records (job_id, seq, type, dataset_id, data) VALUES (?, ?, ?, ?, ?)`

	selectJobColumns = `SELECT id, import_config_id, run_by, run_at, stopped_at, progress_current, progress_total, log_count, record_count FROM job_runs`
)

// ArchiveJob stores the job row with its logs and finished records in one
// transaction. Archiving the same job again replaces the previous copy.
func (r *JobSQLite) ArchiveJob(ctx context.Context, a models.JobArchive) error {
	if a.JobID == "" {
		return errors.New("archive job: empty job id")
	}
	stopped := a.StoppedAt
	if stopped.IsZero() {
		stopped = time.Now().UTC()
	} else {
		stopped = stopped.UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive %q: %w", a.JobID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertJobSQL,
		a.JobID,
		a.ImportConfigID,
		a.RunBy,
		nullTime(a.RunAt),
		stopped,
		a.Progress.Current,
		a.Progress.Total,
		len(a.Logs),
		len(a.Finished),
	); err != nil {
		return fmt.Errorf("upsert job %q: %w", a.JobID, err)
	}
	for _, q := range []string{deleteJobLogsSQL, deleteJobRecordsSQL} {
		if _, err := tx.ExecContext(ctx, q, a.JobID); err != nil {
			return fmt.Errorf("clear archive of %q: %w", a.JobID, err)
		}
	}

	for i, l := range a.Logs {
		if _, err := tx.ExecContext(ctx, insertJobLogSQL, a.JobID, i, l.Level, l.Message, nullTime(l.Timestamp)); err != nil {
			return fmt.Errorf("insert log %d of %q: %w", i, a.JobID, err)
		}
	}
	for i, rec := range a.Finished {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("marshal record %d of %q: %w", i, a.JobID, err)
		}
		if _, err := tx.ExecContext(ctx, insertJobRecordSQL, a.JobID, i, string(rec.Type), rec.Data.ID, string(data)); err != nil {
			return fmt.Errorf("insert record %d of %q: %w", i, a.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive %q: %w", a.JobID, err)
	}
	return nil
}

// ListJobs returns archived jobs, newest stop first, filtered by config and
// by stop time in [from, to]. Logs and records are not loaded.
func (r *JobSQLite) ListJobs(ctx context.Context, configID string, from, to time.Time) ([]models.JobArchive, error) {
	var (
		conds []string
		args  []any
	)
	if configID = strings.TrimSpace(configID); configID != "" {
		conds = append(conds, "import_config_id = ?")
		args = append(args, configID)
	}
	if !from.IsZero() {
		conds = append(conds, "stopped_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "stopped_at <= ?")
		args = append(args, to.UTC())
	}

	q := selectJobColumns
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY stopped_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.JobArchive, 0, 16)
	for rows.Next() {
		a, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJob loads one archived job with its logs and records. Returns
// ErrNotFound when the job was never archived.
func (r *JobSQLite) GetJob(ctx context.Context, jobID string) (models.JobArchive, error) {
	a, err := scanJob(r.db.QueryRowContext(ctx, selectJobColumns+" WHERE id = ?", jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JobArchive{}, ErrNotFound
		}
		return models.JobArchive{}, fmt.Errorf("select job %q: %w", jobID, err)
	}
	if a.Logs, err = r.logs.List(ctx, jobID, ""); err != nil {
		return models.JobArchive{}, fmt.Errorf("load logs of %q: %w", jobID, err)
	}
	if a.Finished, err = r.records.List(ctx, jobID, ""); err != nil {
		return models.JobArchive{}, fmt.Errorf("load records of %q: %w", jobID, err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (models.JobArchive, error) {
	var (
		a     models.JobArchive
		runAt sql.NullTime
	)
	if err := s.Scan(
		&a.JobID,
		&a.ImportConfigID,
		&a.RunBy,
		&runAt,
		&a.StoppedAt,
		&a.Progress.Current,
		&a.Progress.Total,
		&a.LogCount,
		&a.RecordCount,
	); err != nil {
		return models.JobArchive{}, err
	}
	if runAt.Valid {
		a.RunAt = runAt.Time.UTC()
	}
	a.StoppedAt = a.StoppedAt.UTC()
	return a, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
