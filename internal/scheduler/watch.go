package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is how often Watch polls for state changes.
const DefaultInterval = 10 * time.Second

// ErrTimeout is reported when a run does not finish within the watch
// timeout.
var ErrTimeout = errors.New("timed out waiting for run")

// WatchOptions configure Watch. Zero values use the defaults; a zero
// Timeout means no timeout.
type WatchOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Update is one observed state of a run.
type Update struct {
	RunID string    `json:"runId"`
	State State     `json:"state"`
	Err   error     `json:"-"`
	At    time.Time `json:"at"`
}

// Terminal reports whether this is the last update of the subscription.
func (u Update) Terminal() bool {
	return u.State.Terminal()
}

// Watch subscribes to the state of a run. An update is sent for the first
// observed state and for every change after that; the channel is closed
// after a terminal update or when ctx is done. A failing status call ends
// the subscription with a failed update carrying the error, and so does the
// timeout.
func Watch(ctx context.Context, s Scheduler, pipeline, runID string, opts WatchOptions) <-chan Update {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	out := make(chan Update, 1)

	go func() {
		defer close(out)
		var cancel context.CancelFunc = func() {}
		wctx := ctx
		if opts.Timeout > 0 {
			wctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		defer cancel()

		send := func(u Update) bool {
			select {
			case out <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		var last State
		for {
			state, err := s.Status(wctx, pipeline, runID)
			switch {
			case err != nil && wctx.Err() != nil && ctx.Err() == nil:
				send(Update{RunID: runID, State: StateFailed, Err: fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout), At: time.Now()})
				return
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				send(Update{RunID: runID, State: StateFailed, Err: err, At: time.Now()})
				return
			}
			if state != last {
				last = state
				if !send(Update{RunID: runID, State: state, At: time.Now()}) || state.Terminal() {
					return
				}
			}

			select {
			case <-ticker.C:
			case <-wctx.Done():
				if ctx.Err() == nil {
					send(Update{RunID: runID, State: StateFailed, Err: fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout), At: time.Now()})
				}
				return
			}
		}
	}()
	return out
}

// Await blocks until the run reaches a terminal state and returns the final
// update. A failed run returns its update together with a non-nil error.
func Await(ctx context.Context, s Scheduler, pipeline, runID string, opts WatchOptions, onUpdate func(Update)) (Update, error) {
	var last Update
	for u := range Watch(ctx, s, pipeline, runID, opts) {
		last = u
		if onUpdate != nil {
			onUpdate(u)
		}
	}
	if err := ctx.Err(); err != nil {
		return last, err
	}
	if last.State == StateFailed {
		if last.Err != nil {
			return last, last.Err
		}
		return last, fmt.Errorf("run %s failed", runID)
	}
	return last, nil
}
