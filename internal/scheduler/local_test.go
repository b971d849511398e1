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

func TestLocal_Lifecycle(t *testing.T) {
	l := NewLocal(context.Background(), nil)
	release := make(chan struct{})
	var (
		gotConf  map[string]any
		gotRunID string
	)
	l.Register("gen", func(ctx context.Context, conf map[string]any) error {
		gotConf = conf
		gotRunID = RunID(ctx)
		<-release
		return nil
	})
	l.Register("boom", func(context.Context, map[string]any) error {
		return errors.New("boom")
	})

	var mu sync.Mutex
	var changes []State
	l.OnChange = func(r Run) {
		mu.Lock()
		changes = append(changes, r.State)
		mu.Unlock()
	}

	ctx := context.Background()
	id, err := l.Trigger(ctx, "gen", map[string]any{"seed": 1})
	require.NoError(t, err)
	assert.Contains(t, id, "local__")

	close(release)
	l.Wait()
	s, err := l.Status(ctx, "gen", id)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, s)
	assert.Equal(t, map[string]any{"seed": 1}, gotConf)
	assert.Equal(t, id, gotRunID)

	bad, err := l.Trigger(ctx, "boom", nil)
	require.NoError(t, err)
	l.Wait()
	run, err := l.Get(bad)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, "boom", run.Error)

	mu.Lock()
	assert.Equal(t, []State{StateRunning, StateSuccess, StateRunning, StateFailed}, changes)
	mu.Unlock()

	_, err = l.Trigger(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownPipeline)
	_, err = l.Status(ctx, "gen", "nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestLocal_CancelAndPanic(t *testing.T) {
	l := NewLocal(context.Background(), nil)
	l.Register("slow", func(ctx context.Context, _ map[string]any) error {
		<-ctx.Done()
		return ctx.Err()
	})
	l.Register("panics", func(context.Context, map[string]any) error {
		panic("bad state")
	})

	ctx := context.Background()
	id, err := l.Trigger(ctx, "slow", nil)
	require.NoError(t, err)
	require.NoError(t, l.Cancel(id))

	p, err := l.Trigger(ctx, "panics", nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { l.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runs did not finish")
	}

	run, _ := l.Get(id)
	assert.Equal(t, StateFailed, run.State)
	run, _ = l.Get(p)
	assert.Equal(t, StateFailed, run.State)
	assert.Contains(t, run.Error, "bad state")
}
