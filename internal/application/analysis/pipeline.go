package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// Request is one pipeline invocation.
type Request struct {
	JobID    domain.JobID
	RepoURL  string
	PRNumber int
	Token    string
}

// Timeouts bounds each stage; zero means no bound.
type Timeouts struct {
	Fetch       time.Duration
	Materialize time.Duration
	Collect     time.Duration
	Analyze     time.Duration
}

// Hooks observe a run. Both fields are optional.
type Hooks struct {
	OnStage func(stage domain.Stage)
	OnRetry func(attempt int, err error)
}

// Pipeline is the job orchestrator: fetch, materialize, collect, analyze,
// strictly in that order, inside a private temporary directory.
type Pipeline struct {
	Fetcher      *Fetcher
	Materializer *Materializer
	Collector    *Collector
	Analyzer     *Analyzer

	// WorkRoot is the parent of per-job directories; empty means os.TempDir().
	WorkRoot string
	Timeouts Timeouts
}

// Run executes one job. The working directory is removed on every return
// path. A returned error is always a *domain.StageError.
func (p *Pipeline) Run(ctx context.Context, req Request, hooks Hooks) (domain.Report, error) {
	logger := log.With().Str("job_id", string(req.JobID)).Logger()
	enter := func(s domain.Stage) {
		logger.Info().Str("stage", string(s)).Msg("stage started")
		if hooks.OnStage != nil {
			hooks.OnStage(s)
		}
	}

	tmp, err := os.MkdirTemp(p.WorkRoot, "pr-analysis-*")
	if err != nil {
		return domain.Report{}, domain.NewStageError(domain.StageCreated, domain.KindFatal, fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			logger.Error().Err(err).Str("dir", tmp).Msg("failed to remove work dir")
		}
	}()
	repoDir := filepath.Join(tmp, "repo")

	enter(domain.StageFetching)
	err = runStage(ctx, domain.StageFetching, p.Timeouts.Fetch, domain.KindTransient, func(ctx context.Context) error {
		return p.Fetcher.Fetch(ctx, req.RepoURL, req.Token, repoDir, hooks.OnRetry)
	})
	if err != nil {
		return domain.Report{}, err
	}

	enter(domain.StageMaterializing)
	err = runStage(ctx, domain.StageMaterializing, p.Timeouts.Materialize, domain.KindFatal, func(ctx context.Context) error {
		return p.Materializer.Materialize(ctx, repoDir, req.PRNumber)
	})
	if err != nil {
		return domain.Report{}, err
	}

	enter(domain.StageCollecting)
	var files []domain.SourceFile
	err = runStage(ctx, domain.StageCollecting, p.Timeouts.Collect, domain.KindFatal, func(ctx context.Context) error {
		var cerr error
		files, cerr = p.Collector.Collect(ctx, repoDir)
		return cerr
	})
	if err != nil {
		return domain.Report{}, err
	}
	logger.Info().Int("files", len(files)).Msg("source files collected")

	enter(domain.StageAnalyzing)
	var outcomes []domain.Outcome
	err = runStage(ctx, domain.StageAnalyzing, p.Timeouts.Analyze, domain.KindFatal, func(ctx context.Context) error {
		var aerr error
		outcomes, aerr = p.Analyzer.Analyze(ctx, req.JobID, files)
		return aerr
	})
	if err != nil {
		return domain.Report{}, err
	}

	report := domain.Report{
		Collected: len(files),
		Outcomes:  outcomes,
		Analyses:  p.Analyzer.Retained(outcomes),
	}
	logger.Info().Int("collected", report.Collected).Int("retained", len(report.Analyses)).Msg("analysis finished")
	return report, nil
}

// runStage runs fn under the stage timeout and tags its error.
func runStage(ctx context.Context, stage domain.Stage, timeout time.Duration, kind domain.ErrorKind, fn func(context.Context) error) error {
	sctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	err := fn(sctx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return domain.NewStageError(stage, domain.KindTimeout, fmt.Errorf("exceeded %s: %w", timeout, err))
	}
	return domain.NewStageError(stage, kind, err)
}
