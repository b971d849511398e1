package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns the given states in order, repeating the last one.
type scripted struct {
	mu     sync.Mutex
	states []State
	errAt  int
	calls  int
}

func (s *scripted) Trigger(context.Context, string, map[string]any) (string, error) {
	return "run-1", nil
}

func (s *scripted) Status(ctx context.Context, _, _ string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.errAt > 0 && s.calls == s.errAt {
		return "", errors.New("connection refused")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := min(s.calls-1, len(s.states)-1)
	return s.states[i], nil
}

func collect(ch <-chan Update) []Update {
	var out []Update
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func statesOf(us []Update) []State {
	out := make([]State, len(us))
	for i, u := range us {
		out[i] = u.State
	}
	return out
}

func TestWatch_UntilTerminal(t *testing.T) {
	s := &scripted{states: []State{StateQueued, StateQueued, StateRunning, StateRunning, StateSuccess}}
	updates := collect(Watch(context.Background(), s, "p", "run-1", WatchOptions{Interval: time.Millisecond}))
	assert.Equal(t, []State{StateQueued, StateRunning, StateSuccess}, statesOf(updates))
	assert.True(t, updates[2].Terminal())
	assert.Equal(t, "run-1", updates[0].RunID)
}

func TestWatch_TransportFailure(t *testing.T) {
	s := &scripted{states: []State{StateRunning}, errAt: 3}
	updates := collect(Watch(context.Background(), s, "p", "run-1", WatchOptions{Interval: time.Millisecond}))
	require.Len(t, updates, 2)
	assert.Equal(t, StateFailed, updates[1].State)
	assert.ErrorContains(t, updates[1].Err, "connection refused")
}

func TestWatch_Timeout(t *testing.T) {
	s := &scripted{states: []State{StateRunning}}
	updates := collect(Watch(context.Background(), s, "p", "run-1", WatchOptions{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}))
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, StateFailed, last.State)
	assert.ErrorIs(t, last.Err, ErrTimeout)
}

func TestWatch_Cancelled(t *testing.T) {
	s := &scripted{states: []State{StateRunning}}
	ctx, cancel := context.WithCancel(context.Background())
	ch := Watch(ctx, s, "p", "run-1", WatchOptions{Interval: time.Hour})
	first := <-ch
	assert.Equal(t, StateRunning, first.State)
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestAwait(t *testing.T) {
	ok := &scripted{states: []State{StateRunning, StateSuccess}}
	var seen []State
	final, err := Await(context.Background(), ok, "p", "run-1", WatchOptions{Interval: time.Millisecond}, func(u Update) {
		seen = append(seen, u.State)
	})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, final.State)
	assert.Equal(t, []State{StateRunning, StateSuccess}, seen)

	failed := &scripted{states: []State{StateFailed}}
	_, err = Await(context.Background(), failed, "p", "run-1", WatchOptions{Interval: time.Millisecond}, nil)
	assert.ErrorContains(t, err, "run run-1 failed")
}

func TestWatch_LocalScheduler(t *testing.T) {
	l := NewLocal(context.Background(), nil)
	l.Register("p", func(ctx context.Context, _ map[string]any) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	id, err := l.Trigger(context.Background(), "p", nil)
	require.NoError(t, err)
	final, err := Await(context.Background(), l, "p", id, WatchOptions{Interval: 2 * time.Millisecond, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, final.State)
}
