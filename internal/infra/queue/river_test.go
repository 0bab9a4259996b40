package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/bryanwahyu/automaton-review/internal/application/analysis"
	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/infra/db/memory"
)

func TestAnalyzePRArgsDoNotCarryPlainToken(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)
	sealed, err := s.Seal("ghp_plaintext")
	require.NoError(t, err)

	b, err := json.Marshal(AnalyzePRArgs{JobID: "j1", RepoURL: "https://github.com/a/b", PRNumber: 3, SealedToken: sealed})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "ghp_plaintext")
	assert.Equal(t, "analyze_pr", AnalyzePRArgs{}.Kind())
}

func TestAnalyzePRWorkerOpensToken(t *testing.T) {
	s, err := NewSealer("")
	require.NoError(t, err)
	sealed, err := s.Seal("ghp_plaintext")
	require.NoError(t, err)

	var got analysis.Task
	w := &AnalyzePRWorker{sealer: s, handler: func(_ context.Context, task analysis.Task) error {
		got = task
		return nil
	}}
	job := &river.Job[AnalyzePRArgs]{Args: AnalyzePRArgs{JobID: "j1", RepoURL: "https://github.com/a/b", PRNumber: 3, SealedToken: sealed}}
	require.NoError(t, w.Work(context.Background(), job))

	assert.Equal(t, analysis.Task{JobID: "j1", RepoURL: "https://github.com/a/b", PRNumber: 3, Token: "ghp_plaintext"}, got)
}

// noopQueue accepts submissions without running them.
type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, analysis.Task) error { return nil }

func newFailService() *app.Service {
	return &app.Service{Repo: memory.NewJobRepo(), Events: memory.NewEventRepo(), Queue: noopQueue{}}
}

func TestAnalyzePRWorkerCancelsOnBadSeal(t *testing.T) {
	ctx := context.Background()
	svc := newFailService()
	id, err := svc.Submit(ctx, app.SubmitCommand{RepoURL: "https://github.com/a/b", PRNumber: 3})
	require.NoError(t, err)

	s, err := NewSealer("")
	require.NoError(t, err)
	called := false
	w := &AnalyzePRWorker{sealer: s, fail: svc.Fail, handler: func(context.Context, analysis.Task) error {
		called = true
		return nil
	}}
	job := &river.Job[AnalyzePRArgs]{Args: AnalyzePRArgs{JobID: string(id), RepoURL: "https://github.com/a/b", PRNumber: 3, SealedToken: "bm90LWEtYm94"}}
	assert.Error(t, w.Work(ctx, job))
	assert.False(t, called)

	st, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusFailed, st.Status)
	assert.Equal(t, analysis.StageFailed, st.Stage)
	assert.Contains(t, st.Detail, "sealed token")
}

func TestAnalyzePRWorkerFailsJobOnLastAttempt(t *testing.T) {
	ctx := context.Background()
	svc := newFailService()
	id, err := svc.Submit(ctx, app.SubmitCommand{RepoURL: "https://github.com/a/b", PRNumber: 3})
	require.NoError(t, err)

	s, err := NewSealer("")
	require.NoError(t, err)
	sealed, err := s.Seal("ghp_plaintext")
	require.NoError(t, err)
	w := &AnalyzePRWorker{sealer: s, fail: svc.Fail, handler: func(context.Context, analysis.Task) error {
		return errors.New("save job: ghp_plaintext rejected")
	}}
	args := AnalyzePRArgs{JobID: string(id), RepoURL: "https://github.com/a/b", PRNumber: 3, SealedToken: sealed}

	// earlier attempts leave the job to River's retry
	early := &river.Job[AnalyzePRArgs]{JobRow: &rivertype.JobRow{Attempt: 1, MaxAttempts: 2}, Args: args}
	require.Error(t, w.Work(ctx, early))
	st, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusPending, st.Status)

	last := &river.Job[AnalyzePRArgs]{JobRow: &rivertype.JobRow{Attempt: 2, MaxAttempts: 2}, Args: args}
	require.Error(t, w.Work(ctx, last))
	st, err = svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusFailed, st.Status)
	assert.Contains(t, st.Detail, "gave up after 2 attempts")
	assert.NotContains(t, st.Detail, "ghp_plaintext")
}
