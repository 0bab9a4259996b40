package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
  id              VARCHAR(64)   NOT NULL PRIMARY KEY,
  repo_url        VARCHAR(2048) NOT NULL,
  pr_number       INT           NOT NULL,
  status          VARCHAR(16)   NOT NULL,
  stage           VARCHAR(32)   NOT NULL,
  detail          TEXT          NULL,
  files_collected INT           NOT NULL DEFAULT 0,
  files_dropped   INT           NOT NULL DEFAULT 0,
  result_json     JSON          NULL,
  artifact_url    VARCHAR(2048) NOT NULL DEFAULT '',
  created_at      DATETIME(6)   NOT NULL,
  started_at      DATETIME(6)   NULL,
  finished_at     DATETIME(6)   NULL,
  INDEX idx_analysis_jobs_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS analysis_job_events (
  id           BIGINT        NOT NULL AUTO_INCREMENT PRIMARY KEY,
  job_id       VARCHAR(64)   NOT NULL,
  stage        VARCHAR(32)   NOT NULL,
  kind         VARCHAR(16)   NOT NULL,
  file_name    VARCHAR(1024) NOT NULL DEFAULT '',
  message      TEXT          NOT NULL,
  details_json JSON          NULL,
  created_at   DATETIME(6)   NOT NULL,
  INDEX idx_analysis_job_events_job (job_id, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure mysql schema: %w", err)
		}
	}
	return nil
}
