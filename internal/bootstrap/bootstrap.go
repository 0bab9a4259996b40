// Package bootstrap assembles the pipeline and its stores from configuration.
// Both binaries share it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	appai "github.com/bryanwahyu/automaton-review/internal/application/ai"
	appanalysis "github.com/bryanwahyu/automaton-review/internal/application/analysis"
	"github.com/bryanwahyu/automaton-review/internal/config"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/prompt"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/provider"
	"github.com/bryanwahyu/automaton-review/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/automaton-review/internal/infra/db/mysql"
	"github.com/bryanwahyu/automaton-review/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-review/internal/infra/storage"
	"github.com/bryanwahyu/automaton-review/internal/infra/vcs/git"
)

// Stores holds the job and event repositories. DB is nil for the memory driver.
type Stores struct {
	Jobs   domain.Repository
	Events domain.EventRepository
	DB     *sql.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects the configured database and makes sure its tables exist.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		log.Warn().Msg("using in-memory job store, jobs are lost on restart")
		return &Stores{Jobs: memory.NewJobRepo(), Events: memory.NewEventRepo()}, nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN(), cfg.Database.MaxOpen)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Stores{Jobs: mysqlp.NewJobRepository(db), Events: mysqlp.NewEventRepository(db), DB: db}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN(), cfg.Database.MaxOpen)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Stores{Jobs: postgres.NewJobRepository(db), Events: postgres.NewEventRepository(db), DB: db}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// NewPipeline wires git, the model client and the prompt into a Pipeline.
// The returned close func releases the model client.
func NewPipeline(ctx context.Context, cfg *config.Config) (*appanalysis.Pipeline, func() error, error) {
	client, err := provider.New(ctx, cfg.Analyzer)
	if err != nil {
		return nil, nil, fmt.Errorf("analyzer provider: %w", err)
	}
	closeFn := func() error { return nil }
	if c, ok := client.(io.Closer); ok {
		closeFn = c.Close
	}

	vcs := git.NewCLI(cfg.Git.Binary, cfg.Git.PostBuffer, cfg.Git.Depth)
	p := &appanalysis.Pipeline{
		Fetcher: &appanalysis.Fetcher{
			VCS:     vcs,
			Retries: cfg.Git.CloneRetries,
			Backoff: cfg.Git.RetryBackoff,
		},
		Materializer: &appanalysis.Materializer{VCS: vcs, Remote: "origin"},
		Collector:    &appanalysis.Collector{Extension: cfg.Analyzer.Extension},
		Analyzer: &appanalysis.Analyzer{
			Client:        appai.NewService(client, cfg.Analyzer.RateLimitRPS, cfg.Analyzer.MaxAttempts),
			Prompt:        prompt.NewReview(cfg.Analyzer.Language),
			StrictSchema:  cfg.Analyzer.StrictSchema,
			RepairJSON:    cfg.Analyzer.RepairJSON,
			RedactSecrets: cfg.Analyzer.RedactSecrets,
		},
		WorkRoot: cfg.Git.WorkRoot,
		Timeouts: appanalysis.Timeouts{
			Fetch:       cfg.Pipeline.FetchTimeout,
			Materialize: cfg.Pipeline.MaterializeTimeout,
			Collect:     cfg.Pipeline.CollectTimeout,
			Analyze:     cfg.Pipeline.AnalyzeTimeout,
		},
	}
	return p, closeFn, nil
}

// NewArtifacts returns the MinIO archive, or nil when disabled.
func NewArtifacts(ctx context.Context, cfg *config.Config) (domain.ArtifactStore, error) {
	if !cfg.Minio.Enabled {
		return nil, nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return store, nil
}
