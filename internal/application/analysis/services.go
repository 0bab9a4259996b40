package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/automaton-review/internal/application"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/redact"
)

var (
	// ErrInvalidRequest wraps submission input errors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotReady covers pending, running and unknown jobs alike.
	ErrNotReady = errors.New("result not ready")
)

// FailedError is returned by Result for a job that ended in failure.
type FailedError struct {
	Detail string
}

func (e *FailedError) Error() string { return e.Detail }

// Runner runs the pipeline for one job.
type Runner interface {
	Run(ctx context.Context, req Request, hooks Hooks) (domain.Report, error)
}

// Metrics receives job lifecycle counts. Optional.
type Metrics interface {
	JobSubmitted()
	JobStarted()
	JobFinished(status domain.Status)
}

// Service implements use-cases untuk AnalysisJob: submit, status, result
// (API side) and Execute (worker side).
// Service is safe for concurrent use.
type Service struct {
	Repo      domain.Repository
	Events    domain.EventRepository
	Queue     domain.Queue
	Runner    Runner
	Artifacts domain.ArtifactStore
	Metrics   Metrics
	Clock     application.Clock
}

//
// ==== USE CASES ====
//

// SubmitCommand untuk trigger analisa PR
type SubmitCommand struct {
	RepoURL  string
	PRNumber int
	Token    string
}

// StatusView is what callers see for a job id.
type StatusView struct {
	ID     domain.JobID  `json:"task_id"`
	Status domain.Status `json:"status"`
	Stage  domain.Stage  `json:"stage"`
	Detail string        `json:"detail,omitempty"`
}

// Submit records a pending job and enqueues it.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (domain.JobID, error) {
	if strings.TrimSpace(cmd.RepoURL) == "" {
		return "", fmt.Errorf("%w: repo_url is required", ErrInvalidRequest)
	}
	if cmd.PRNumber <= 0 {
		return "", fmt.Errorf("%w: pr_number must be positive", ErrInvalidRequest)
	}

	job := &domain.Job{
		ID:        domain.JobID(uuid.New().String()),
		RepoURL:   redact.URL(cmd.RepoURL),
		PRNumber:  cmd.PRNumber,
		Status:    domain.StatusPending,
		Stage:     domain.StageCreated,
		CreatedAt: s.now(),
	}
	if err := s.Repo.Save(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	task := domain.Task{JobID: job.ID, RepoURL: cmd.RepoURL, PRNumber: cmd.PRNumber, Token: cmd.Token}
	if err := s.Queue.Enqueue(ctx, task); err != nil {
		// job yang gagal masuk antrian ditandai failed
		_ = s.finish(context.WithoutCancel(ctx), job, domain.StatusFailed, domain.StageFailed, "enqueue failed: "+err.Error())
		return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	if s.Metrics != nil {
		s.Metrics.JobSubmitted()
	}
	log.Info().Str("job_id", string(job.ID)).Str("repo", job.RepoURL).Int("pr", job.PRNumber).Msg("job submitted")
	return job.ID, nil
}

// Status reports a job's lifecycle state. Unknown ids report pending.
func (s *Service) Status(ctx context.Context, id domain.JobID) (StatusView, error) {
	job, err := s.Repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return StatusView{ID: id, Status: domain.StatusPending, Stage: domain.StageCreated}, nil
	}
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{ID: job.ID, Status: job.Status, Stage: job.Stage, Detail: job.Detail}, nil
}

// Result returns the analyses of a succeeded job, ErrNotReady for jobs that
// are unknown or still in flight, and *FailedError for failed ones.
func (s *Service) Result(ctx context.Context, id domain.JobID) ([]domain.FileAnalysis, error) {
	job, err := s.Repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotReady
	}
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case domain.StatusSucceeded:
		if job.Result == nil {
			return []domain.FileAnalysis{}, nil
		}
		return job.Result, nil
	case domain.StatusFailed:
		return nil, &FailedError{Detail: job.Detail}
	default:
		return nil, ErrNotReady
	}
}

// Latest ambil N job terakhir
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Job, error) {
	return s.Repo.Latest(ctx, limit)
}

// Get ambil 1 job by id
func (s *Service) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.Repo.Get(ctx, id)
}

// JobEvents lists the audit entries of a job.
func (s *Service) JobEvents(ctx context.Context, id domain.JobID, limit int) ([]*domain.Event, error) {
	if s.Events == nil {
		return []*domain.Event{}, nil
	}
	return s.Events.ListByJob(ctx, id, limit)
}

// Execute is the queue handler. Pipeline failures are recorded on the job and
// are not returned; only persistence errors are, so the queue may redeliver.
// Redelivery of a terminal job is a no-op.
func (s *Service) Execute(ctx context.Context, task domain.Task) error {
	logger := log.With().Str("job_id", string(task.JobID)).Logger()

	job, err := s.Repo.Get(ctx, task.JobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		job = &domain.Job{
			ID:        task.JobID,
			RepoURL:   redact.URL(task.RepoURL),
			PRNumber:  task.PRNumber,
			CreatedAt: s.now(),
		}
	case err != nil:
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	case job.Status.Terminal():
		logger.Info().Str("status", string(job.Status)).Msg("job already finished, skipping redelivery")
		return nil
	}

	started := s.now()
	job.Status = domain.StatusRunning
	job.Stage = domain.StageCreated
	job.Detail = ""
	job.StartedAt = &started
	if err := s.Repo.Save(ctx, job); err != nil {
		return fmt.Errorf("mark job %s running: %w", job.ID, err)
	}
	if s.Metrics != nil {
		s.Metrics.JobStarted()
	}

	hooks := Hooks{
		OnStage: func(stage domain.Stage) {
			job.Stage = stage
			if err := s.Repo.UpdateStage(ctx, job.ID, stage); err != nil {
				logger.Warn().Err(err).Str("stage", string(stage)).Msg("failed to persist stage")
			}
		},
		OnRetry: func(attempt int, err error) {
			s.event(ctx, job.ID, domain.StageFetching, domain.EventRetry, "", redact.Token(err.Error(), task.Token),
				map[string]any{"attempt": attempt})
		},
	}

	report, runErr := s.Runner.Run(ctx, Request{
		JobID:    job.ID,
		RepoURL:  task.RepoURL,
		PRNumber: task.PRNumber,
		Token:    task.Token,
	}, hooks)

	// hasil akhir tetap disimpan walaupun ctx worker sudah dibatalkan
	final := context.WithoutCancel(ctx)

	if runErr != nil {
		detail := redact.Token(runErr.Error(), task.Token)
		s.event(final, job.ID, domain.StageOf(runErr), domain.EventFailure, "", detail, nil)
		logger.Error().Str("stage", string(domain.StageOf(runErr))).Str("error", detail).Msg("job failed")
		return s.finish(final, job, domain.StatusFailed, domain.StageFailed, detail)
	}

	for _, o := range report.Outcomes {
		switch o.Kind {
		case domain.OutcomeUnparseable:
			s.event(final, job.ID, domain.StageAnalyzing, domain.EventUnparseable, o.File, o.Err.Error(),
				map[string]any{"sample": truncate(o.Raw, 512)})
		case domain.OutcomeMalformed:
			s.event(final, job.ID, domain.StageAnalyzing, domain.EventMalformed, o.File, o.Err.Error(), nil)
		}
	}

	job.Result = report.Analyses
	job.FilesCollected = report.Collected
	job.FilesDropped = report.Dropped()
	job.ArtifactURL = s.archive(final, job)
	return s.finish(final, job, domain.StatusSucceeded, domain.StageCompleted, "")
}

// Fail marks a job failed on behalf of a queue that gave up on it without a
// completed handler run. Terminal jobs are left untouched.
func (s *Service) Fail(ctx context.Context, task domain.Task, detail string) error {
	detail = redact.Token(detail, task.Token)
	job, err := s.Repo.Get(ctx, task.JobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		job = &domain.Job{
			ID:        task.JobID,
			RepoURL:   redact.URL(task.RepoURL),
			PRNumber:  task.PRNumber,
			Stage:     domain.StageCreated,
			CreatedAt: s.now(),
		}
	case err != nil:
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	case job.Status.Terminal():
		return nil
	}

	stage := job.Stage
	if stage == "" {
		stage = domain.StageCreated
	}
	s.event(ctx, job.ID, stage, domain.EventFailure, "", detail, nil)
	log.Error().Str("job_id", string(job.ID)).Str("error", detail).Msg("job abandoned by queue")
	return s.finish(ctx, job, domain.StatusFailed, domain.StageFailed, detail)
}

func (s *Service) finish(ctx context.Context, job *domain.Job, status domain.Status, stage domain.Stage, detail string) error {
	done := s.now()
	job.Status = status
	job.Stage = stage
	job.Detail = detail
	job.FinishedAt = &done
	if s.Metrics != nil && job.StartedAt != nil {
		s.Metrics.JobFinished(status)
	}
	if err := s.Repo.Save(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// archive uploads the result list; failures only cost the artifact URL.
func (s *Service) archive(ctx context.Context, job *domain.Job) string {
	if s.Artifacts == nil {
		return ""
	}
	data, err := json.Marshal(map[string]any{"task_id": job.ID, "result": job.Result})
	if err != nil {
		log.Warn().Err(err).Str("job_id", string(job.ID)).Msg("failed to encode result archive")
		return ""
	}
	url, err := s.Artifacts.PutJSON(ctx, fmt.Sprintf("results/%s.json", job.ID), data)
	if err != nil {
		log.Warn().Err(err).Str("job_id", string(job.ID)).Msg("failed to upload result archive")
		return ""
	}
	return url
}

func (s *Service) event(ctx context.Context, id domain.JobID, stage domain.Stage, kind domain.EventKind, file, msg string, details map[string]any) {
	if s.Events == nil {
		return
	}
	e := &domain.Event{
		JobID:     id,
		Stage:     stage,
		Kind:      kind,
		FileName:  file,
		Message:   msg,
		CreatedAt: s.now(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			e.DetailsJSON = string(b)
		}
	}
	if err := s.Events.Save(ctx, e); err != nil {
		log.Warn().Err(err).Str("job_id", string(id)).Str("kind", string(kind)).Msg("failed to record event")
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
