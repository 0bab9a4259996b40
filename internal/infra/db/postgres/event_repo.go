package postgres

import (
	"context"
	"database/sql"
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
INSERT INTO analysis_job_events (job_id, stage, kind, file_name, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		e.JobID, e.Stage, e.Kind, e.FileName, e.Message, detailsJSON(e.DetailsJSON), e.CreatedAt,
	).Scan(&e.ID)
}

// ListByJob returns events oldest first
func (r *EventRepository) ListByJob(ctx context.Context, id domain.JobID, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, job_id, stage, kind, file_name, message, COALESCE(details_json::text, ''), created_at
FROM analysis_job_events
WHERE job_id = $1
ORDER BY id ASC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.Kind, &e.FileName, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
