package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// openTestDB connects to the database named by AUTOMATON_TEST_POSTGRES_DSN.
func openTestDB(t *testing.T) *JobRepository {
	t.Helper()
	dsn := os.Getenv("AUTOMATON_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUTOMATON_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, EnsureSchema(ctx, db))
	return NewJobRepository(db)
}

func TestJobRepositoryRoundTrip(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	id := analysis.JobID(uuid.NewString())
	job := &analysis.Job{
		ID:        id,
		RepoURL:   "https://github.com/acme/widgets",
		PRNumber:  7,
		Status:    analysis.StatusPending,
		Stage:     analysis.StageCreated,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, repo.UpdateStage(ctx, id, analysis.StageFetching))
	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analysis.StageFetching, got.Stage)
	assert.Nil(t, got.Result)

	done := time.Now().UTC()
	job.Status = analysis.StatusSucceeded
	job.Stage = analysis.StageCompleted
	job.FinishedAt = &done
	job.FilesCollected = 2
	job.FilesDropped = 1
	job.Result = []analysis.FileAnalysis{{FileName: "a.py", Issues: []analysis.Issue{}}}
	require.NoError(t, repo.Save(ctx, job))

	got, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusSucceeded, got.Status)
	require.Len(t, got.Result, 1)
	assert.Equal(t, "a.py", got.Result[0].FileName)
	assert.NotNil(t, got.FinishedAt)

	latest, err := repo.Latest(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, latest)

	_, err = repo.Get(ctx, analysis.JobID(uuid.NewString()))
	assert.ErrorIs(t, err, analysis.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateStage(ctx, analysis.JobID(uuid.NewString()), analysis.StageFailed), analysis.ErrNotFound)
}

func TestEventRepositoryOrdering(t *testing.T) {
	jobs := openTestDB(t)
	events := NewEventRepository(jobs.db)
	ctx := context.Background()

	id := analysis.JobID(uuid.NewString())
	for _, msg := range []string{"first", "second"} {
		require.NoError(t, events.Save(ctx, &analysis.Event{
			JobID: id, Stage: analysis.StageFetching, Kind: analysis.EventRetry, Message: msg,
		}))
	}
	list, err := events.ListByJob(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Message)
	assert.Empty(t, list[0].DetailsJSON)
}
