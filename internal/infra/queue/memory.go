package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// Handler executes one task. A returned error makes the task eligible for
// another attempt, up to the queue's attempt limit.
type Handler func(ctx context.Context, t analysis.Task) error

// FailFunc records a task the queue gave up on, so its job does not stay
// pending or running forever.
type FailFunc func(ctx context.Context, t analysis.Task, detail string) error

// Memory is an in-process worker pool fed by a bounded buffer. Tasks live
// only in memory and are lost on restart.
type Memory struct {
	tasks       chan analysis.Task
	handler     Handler
	fail        FailFunc
	workers     int
	maxAttempts int
	backoff     time.Duration

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ analysis.Queue = (*Memory)(nil)

func NewMemory(workers, buffer, maxAttempts int, h Handler) *Memory {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Memory{
		tasks:       make(chan analysis.Task, buffer),
		handler:     h,
		workers:     workers,
		maxAttempts: maxAttempts,
		backoff:     time.Second,
		quit:        make(chan struct{}),
	}
}

// OnGiveUp sets the callback for tasks whose last attempt failed. Call it
// before Start.
func (m *Memory) OnGiveUp(f FailFunc) { m.fail = f }

// Enqueue never blocks: a full buffer is reported as ErrQueueFull.
func (m *Memory) Enqueue(ctx context.Context, t analysis.Task) error {
	select {
	case <-m.quit:
		return fmt.Errorf("queue stopped")
	default:
	}
	select {
	case m.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return analysis.ErrQueueFull
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (m *Memory) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.started = true

	wctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.loop(wctx, i)
	}
	log.Info().Int("workers", m.workers).Int("buffer", cap(m.tasks)).Msg("memory queue started")
	return nil
}

// Stop stops accepting work and waits for in-flight tasks. When ctx expires
// first, running handlers are canceled.
func (m *Memory) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
	m.cancel()
	if n := len(m.tasks); n > 0 {
		log.Warn().Int("pending", n).Msg("memory queue stopped with pending tasks")
	}
	return nil
}

func (m *Memory) loop(ctx context.Context, id int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.quit:
			return
		case <-ctx.Done():
			return
		case t := <-m.tasks:
			m.run(ctx, id, t)
		}
	}
}

func (m *Memory) run(ctx context.Context, id int, t analysis.Task) {
	logger := log.With().Str("job_id", string(t.JobID)).Int("worker", id).Logger()
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err := m.safeHandle(ctx, t)
		if err == nil {
			return
		}
		logger.Error().Err(err).Int("attempt", attempt).Msg("task failed")
		if attempt == m.maxAttempts {
			giveUp(ctx, m.fail, t, fmt.Sprintf("gave up after %d attempts: %v", attempt, err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.backoff * time.Duration(attempt)):
		}
	}
}

func (m *Memory) safeHandle(ctx context.Context, t analysis.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return m.handler(ctx, t)
}

func giveUp(ctx context.Context, fail FailFunc, t analysis.Task, detail string) {
	if fail == nil {
		return
	}
	if err := fail(context.WithoutCancel(ctx), t, detail); err != nil {
		log.Error().Err(err).Str("job_id", string(t.JobID)).Msg("failed to record abandoned task")
	}
}
