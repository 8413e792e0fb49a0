package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"import_panel/internal/models"
)

type RecordSQLite struct {
	db *sql.DB
}

func NewRecordSQLite(db *sql.DB) *RecordSQLite { return &RecordSQLite{db: db} }

// List returns the archived finished records of a job in arrival order.
// An empty typ means every type.
func (r *RecordSQLite) List(ctx context.Context, jobID string, typ models.RecordType) ([]models.FinishedRecord, error) {
	q := `SELECT type, dataset_id, data FROM job_records WHERE job_id = ?`
	args := []any{jobID}
	if typ != "" {
		q += " AND type = ?"
		args = append(args, string(typ))
	}
	q += " ORDER BY seq ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.FinishedRecord, 0, 32)
	for rows.Next() {
		var (
			rec       models.FinishedRecord
			typStr    string
			datasetID string
			data      string
		)
		if err := rows.Scan(&typStr, &datasetID, &data); err != nil {
			return nil, err
		}
		rec.Type = models.RecordType(typStr)
		if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
			// keep what the row itself knows
			rec.Data = models.RecordData{ID: datasetID}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
