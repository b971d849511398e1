// Package scheduler triggers pipeline runs and tracks their state.
package scheduler

import (
	"context"
	"errors"
)

// State is the lifecycle state of a pipeline run.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

var (
	// ErrUnknownPipeline is returned for pipelines the scheduler does not know.
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrUnknownRun is returned for run ids the scheduler does not know.
	ErrUnknownRun = errors.New("unknown run")
)

// Scheduler starts pipeline runs and reports their state.
type Scheduler interface {
	Trigger(ctx context.Context, pipeline string, conf map[string]any) (string, error)
	Status(ctx context.Context, pipeline, runID string) (State, error)
}

type runIDKey struct{}

// WithRunID returns a context carrying the id of the run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
