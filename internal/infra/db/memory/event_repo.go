package memory

import (
	"context"
	"sync"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

type EventRepo struct {
	mu     sync.Mutex
	nextID int64
	events map[analysis.JobID][]analysis.Event
}

func NewEventRepo() *EventRepo {
	return &EventRepo{events: make(map[analysis.JobID][]analysis.Event)}
}

var _ analysis.EventRepository = (*EventRepo)(nil)

// Save assigns e.ID and appends the event.
func (r *EventRepo) Save(_ context.Context, e *analysis.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.events[e.JobID] = append(r.events[e.JobID], *e)
	return nil
}

// ListByJob returns events oldest first, at most limit when limit > 0.
func (r *EventRepo) ListByJob(_ context.Context, id analysis.JobID, limit int) ([]*analysis.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.events[id]
	if limit > 0 && len(src) > limit {
		src = src[:limit]
	}
	out := make([]*analysis.Event, 0, len(src))
	for i := range src {
		e := src[i]
		out = append(out, &e)
	}
	return out, nil
}
