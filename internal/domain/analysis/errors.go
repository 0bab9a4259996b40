package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories for unknown job ids.
	ErrNotFound = errors.New("analysis job not found")
	// ErrTimeout marks a stage that exceeded its deadline.
	ErrTimeout = errors.New("stage timed out")
	// ErrQueueFull is returned when a queue cannot accept more tasks.
	ErrQueueFull = errors.New("job queue is full")
)

// ErrorKind separates the error classes of the pipeline.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindFatal     ErrorKind = "fatal"
	KindTimeout   ErrorKind = "timeout"
)

// StageError wraps the error that terminated a job together with the stage
// it happened in.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimeout) match timeout-kind stage errors even when
// the wrapped error is a plain context deadline.
func (e *StageError) Is(target error) bool {
	return target == ErrTimeout && e.Kind == KindTimeout
}

// NewStageError builds a StageError.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the stage recorded in err, or StageFailed when err carries
// none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}
