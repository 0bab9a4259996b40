package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// AnalyzePRArgs is the durable payload of one analysis job. The token is
// sealed; everything else is safe to store in clear.
type AnalyzePRArgs struct {
	JobID       string `json:"job_id"`
	RepoURL     string `json:"repo_url"`
	PRNumber    int    `json:"pr_number"`
	SealedToken string `json:"sealed_token,omitempty"`
}

func (AnalyzePRArgs) Kind() string { return "analyze_pr" }

// AnalyzePRWorker opens the sealed token and hands the task to the handler.
// Jobs it cancels or runs out of attempts on are reported to fail.
type AnalyzePRWorker struct {
	river.WorkerDefaults[AnalyzePRArgs]
	sealer  *Sealer
	handler Handler
	fail    FailFunc
}

func (w *AnalyzePRWorker) Work(ctx context.Context, job *river.Job[AnalyzePRArgs]) error {
	task := analysis.Task{
		JobID:    analysis.JobID(job.Args.JobID),
		RepoURL:  job.Args.RepoURL,
		PRNumber: job.Args.PRNumber,
	}
	token, err := w.sealer.Open(job.Args.SealedToken)
	if err != nil {
		// a key mismatch never heals on retry
		log.Error().Err(err).Str("job_id", job.Args.JobID).Msg("cannot open sealed token, cancelling job")
		giveUp(ctx, w.fail, task, "cannot open sealed token: "+err.Error())
		return river.JobCancel(err)
	}
	task.Token = token

	err = w.handler(ctx, task)
	if err != nil && job.JobRow != nil && job.Attempt >= job.MaxAttempts {
		giveUp(ctx, w.fail, task, fmt.Sprintf("gave up after %d attempts: %v", job.Attempt, err))
	}
	return err
}

// River is a Postgres-backed durable queue. The River schema must already
// exist (`river migrate-up --database-url ...`).
type River struct {
	client      *river.Client[pgx.Tx]
	worker      *AnalyzePRWorker
	sealer      *Sealer
	maxAttempts int
}

var _ analysis.Queue = (*River)(nil)

func NewRiver(pool *pgxpool.Pool, workers, maxAttempts int, sealer *Sealer, h Handler) (*River, error) {
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	ws := river.NewWorkers()
	worker := &AnalyzePRWorker{sealer: sealer, handler: h}
	river.AddWorker(ws, worker)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: workers},
		},
		Workers: ws,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &River{client: client, worker: worker, sealer: sealer, maxAttempts: maxAttempts}, nil
}

// OnGiveUp sets the callback for cancelled or exhausted jobs. Call it
// before Start.
func (q *River) OnGiveUp(f FailFunc) { q.worker.fail = f }

func (q *River) Enqueue(ctx context.Context, t analysis.Task) error {
	sealed, err := q.sealer.Seal(t.Token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	args := AnalyzePRArgs{
		JobID:       string(t.JobID),
		RepoURL:     t.RepoURL,
		PRNumber:    t.PRNumber,
		SealedToken: sealed,
	}
	if _, err := q.client.Insert(ctx, args, &river.InsertOpts{MaxAttempts: q.maxAttempts}); err != nil {
		return fmt.Errorf("failed to queue analysis job: %w", err)
	}
	return nil
}

func (q *River) Start(ctx context.Context) error { return q.client.Start(ctx) }

func (q *River) Stop(ctx context.Context) error { return q.client.Stop(ctx) }
