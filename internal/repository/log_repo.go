package repository

import (
	"context"
	"database/sql"
	"strings"

	"import_panel/internal/models"
)

type LogSQLite struct {
	db *sql.DB
}

func NewLogSQLite(db *sql.DB) *LogSQLite { return &LogSQLite{db: db} }

// List returns the archived lines of a job in arrival order, optionally
// only one level.
func (r *LogSQLite) List(ctx context.Context, jobID, level string) ([]models.LogLine, error) {
	q := `SELECT level, message, logged_at FROM job_logs WHERE job_id = ?`
	args := []any{jobID}
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		q += " AND level = ?"
		args = append(args, level)
	}
	q += " ORDER BY seq ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.LogLine, 0, 64)
	for rows.Next() {
		var (
			l  models.LogLine
			at sql.NullTime
		)
		if err := rows.Scan(&l.Level, &l.Message, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			l.Timestamp = at.Time.UTC()
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
