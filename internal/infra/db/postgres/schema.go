package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
  id              TEXT        PRIMARY KEY,
  repo_url        TEXT        NOT NULL,
  pr_number       INTEGER     NOT NULL,
  status          TEXT        NOT NULL,
  stage           TEXT        NOT NULL,
  detail          TEXT,
  files_collected INTEGER     NOT NULL DEFAULT 0,
  files_dropped   INTEGER     NOT NULL DEFAULT 0,
  result_json     JSONB,
  artifact_url    TEXT        NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL,
  started_at      TIMESTAMPTZ,
  finished_at     TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created ON analysis_jobs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS analysis_job_events (
  id           BIGSERIAL   PRIMARY KEY,
  job_id       TEXT        NOT NULL,
  stage        TEXT        NOT NULL,
  kind         TEXT        NOT NULL,
  file_name    TEXT        NOT NULL DEFAULT '',
  message      TEXT        NOT NULL,
  details_json JSONB,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_job_events_job ON analysis_job_events (job_id, id)`,
}

// EnsureSchema creates the tables when missing. River keeps its own tables,
// managed by its migration tool.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
	}
	return nil
}
