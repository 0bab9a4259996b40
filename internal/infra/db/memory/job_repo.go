// Package memory keeps jobs and events in process memory. It backs the
// default configuration and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

type JobRepo struct {
	mu   sync.RWMutex
	jobs map[analysis.JobID]*analysis.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[analysis.JobID]*analysis.Job)}
}

var _ analysis.Repository = (*JobRepo)(nil)

// Save upserts a copy of j.
func (r *JobRepo) Save(_ context.Context, j *analysis.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = cloneJob(j)
	return nil
}

func (r *JobRepo) Get(_ context.Context, id analysis.JobID) (*analysis.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, analysis.ErrNotFound
	}
	return cloneJob(j), nil
}

func (r *JobRepo) UpdateStage(_ context.Context, id analysis.JobID, stage analysis.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return analysis.ErrNotFound
	}
	j.Stage = stage
	return nil
}

// Latest returns up to limit jobs, newest first.
func (r *JobRepo) Latest(_ context.Context, limit int) ([]*analysis.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*analysis.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneJob(j *analysis.Job) *analysis.Job {
	c := *j
	if j.Result != nil {
		c.Result = make([]analysis.FileAnalysis, len(j.Result))
		copy(c.Result, j.Result)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
