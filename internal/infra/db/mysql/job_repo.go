package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ domain.Repository = (*JobRepository)(nil)

const jobColumns = `id, repo_url, pr_number, status, stage, detail,
       files_collected, files_dropped, result_json, artifact_url,
       created_at, started_at, finished_at`

// Save insert/update Job record
func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, repo_url, pr_number, status, stage, detail,
 files_collected, files_dropped, result_json, artifact_url,
 created_at, started_at, finished_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), stage=VALUES(stage), detail=VALUES(detail),
 files_collected=VALUES(files_collected), files_dropped=VALUES(files_dropped),
 result_json=VALUES(result_json), artifact_url=VALUES(artifact_url),
 started_at=VALUES(started_at), finished_at=VALUES(finished_at);
`
	result, err := encodeResult(j.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, q,
		j.ID, j.RepoURL, j.PRNumber, stringOrDash(string(j.Status)), stringOrDash(string(j.Stage)), j.Detail,
		j.FilesCollected, j.FilesDropped, result, j.ArtifactURL,
		created, nullTime(j.StartedAt), nullTime(j.FinishedAt),
	)
	return err
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id=? LIMIT 1;`
	j, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *JobRepository) UpdateStage(ctx context.Context, id domain.JobID, stage domain.Stage) error {
	res, err := r.db.ExecContext(ctx, `UPDATE analysis_jobs SET stage=? WHERE id=?`, stage, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		// MySQL reports 0 when the value is unchanged, so confirm the row exists
		if _, gerr := r.Get(ctx, id); errors.Is(gerr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
	}
	return nil
}

// Latest jobs, newest first
func (r *JobRepository) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs ORDER BY created_at DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j       domain.Job
		detail  sql.NullString
		result  sql.NullString
		started sql.NullTime
		done    sql.NullTime
	)
	if err := row.Scan(
		&j.ID, &j.RepoURL, &j.PRNumber, &j.Status, &j.Stage, &detail,
		&j.FilesCollected, &j.FilesDropped, &result, &j.ArtifactURL,
		&j.CreatedAt, &started, &done,
	); err != nil {
		return nil, err
	}
	j.Detail = detail.String
	j.StartedAt = timePtr(started)
	j.FinishedAt = timePtr(done)

	res, err := decodeResult(result)
	if err != nil {
		return nil, fmt.Errorf("decode result of job %s: %w", j.ID, err)
	}
	j.Result = res
	return &j, nil
}
