package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository { return &EventRepository{db: db} }

var _ domain.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Save(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO analysis_job_events
  (job_id, stage, kind, file_name, message, details_json, created_at)
VALUES (?,?,?,?,?,?,?)
`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		e.JobID, stringOrDash(string(e.Stage)), stringOrDash(string(e.Kind)), e.FileName, msg, detailsOrEmpty(e.DetailsJSON), created)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListByJob returns events oldest first
func (r *EventRepository) ListByJob(ctx context.Context, id domain.JobID, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, job_id, stage, kind, file_name, message, details_json, created_at
FROM analysis_job_events
WHERE job_id = ?
ORDER BY id ASC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.Kind, &e.FileName, &e.Message, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DetailsJSON = details.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
