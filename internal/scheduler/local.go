package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PipelineFunc is one runnable pipeline. It must return when ctx is done.
type PipelineFunc func(ctx context.Context, conf map[string]any) error

// Run is a snapshot of a local run.
type Run struct {
	ID       string    `json:"id"`
	Pipeline string    `json:"pipeline"`
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
}

type localRun struct {
	Run
	cancel context.CancelFunc
}

// Local runs registered pipelines in-process, one goroutine per run.
type Local struct {
	mu        sync.Mutex
	pipelines map[string]PipelineFunc
	runs      map[string]*localRun
	wg        sync.WaitGroup
	baseCtx   context.Context
	logger    *slog.Logger
	// OnChange, when set, is called after every state change.
	OnChange func(Run)
}

// NewLocal returns a scheduler whose runs are cancelled when ctx is done.
func NewLocal(ctx context.Context, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Local{
		pipelines: make(map[string]PipelineFunc),
		runs:      make(map[string]*localRun),
		baseCtx:   ctx,
		logger:    logger,
	}
}

// Register adds a pipeline under name, replacing any previous one.
func (l *Local) Register(name string, fn PipelineFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pipelines[name] = fn
}

// Trigger starts a run of pipeline and returns its id immediately.
func (l *Local) Trigger(_ context.Context, pipeline string, conf map[string]any) (string, error) {
	l.mu.Lock()
	fn, ok := l.pipelines[pipeline]
	if !ok {
		l.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
	}
	ctx, cancel := context.WithCancel(l.baseCtx)
	r := &localRun{
		Run:    Run{ID: "local__" + uuid.NewString(), Pipeline: pipeline, State: StateQueued, Started: time.Now()},
		cancel: cancel,
	}
	l.runs[r.ID] = r
	l.mu.Unlock()

	l.wg.Add(1)
	go l.execute(ctx, r, fn, conf)
	return r.ID, nil
}

func (l *Local) execute(ctx context.Context, r *localRun, fn PipelineFunc, conf map[string]any) {
	defer l.wg.Done()
	defer r.cancel()

	l.transition(r, StateRunning, nil)
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("pipeline panicked: %v", p)
			}
		}()
		return fn(WithRunID(ctx, r.ID), conf)
	}()
	if err != nil {
		l.logger.Error("pipeline run failed", "pipeline", r.Pipeline, "run_id", r.ID, "error", err)
		l.transition(r, StateFailed, err)
		return
	}
	l.logger.Info("pipeline run succeeded", "pipeline", r.Pipeline, "run_id", r.ID)
	l.transition(r, StateSuccess, nil)
}

func (l *Local) transition(r *localRun, s State, err error) {
	l.mu.Lock()
	if r.State.Terminal() {
		l.mu.Unlock()
		return
	}
	r.State = s
	if err != nil {
		r.Error = err.Error()
	}
	if s.Terminal() {
		r.Finished = time.Now()
	}
	snap := r.Run
	notify := l.OnChange
	l.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
}

// Status returns the state of a run.
func (l *Local) Status(_ context.Context, pipeline, runID string) (State, error) {
	r, err := l.Get(runID)
	if err != nil {
		return "", err
	}
	if pipeline != "" && r.Pipeline != pipeline {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownRun, pipeline, runID)
	}
	return r.State, nil
}

// Get returns a snapshot of a run.
func (l *Local) Get(runID string) (Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return r.Run, nil
}

// Cancel aborts a run. The run ends in the failed state.
func (l *Local) Cancel(runID string) error {
	l.mu.Lock()
	r, ok := l.runs[runID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	r.cancel()
	return nil
}

// Wait blocks until every started run has finished.
func (l *Local) Wait() {
	l.wg.Wait()
}
