package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cols := []schema.Column{{Name: "id", Type: schema.TypeInteger}}

	w, err := m.Begin(ctx, "a", cols)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(ctx, []schema.Row{{int64(1)}, {int64(2)}}))
	assert.Error(t, w.WriteBatch(ctx, []schema.Row{{int64(1), "extra"}}))
	require.NoError(t, w.Commit(ctx))

	aborted, err := m.Begin(ctx, "b", cols)
	require.NoError(t, err)
	require.NoError(t, aborted.WriteBatch(ctx, []schema.Row{{int64(1)}}))
	require.NoError(t, aborted.Abort(ctx))

	names, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)

	head, err := Preview(ctx, m, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []schema.Row{{int64(1)}}, head.Rows)

	_, err = Preview(ctx, m, "b", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

type brokenSink struct{}

func (brokenSink) Begin(context.Context, string, []schema.Column) (TableWriter, error) {
	return nil, errors.New("offline")
}

func TestTee(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(), NewMemory()
	tee := Tee{a, b}
	cols := []schema.Column{{Name: "id", Type: schema.TypeInteger}}

	w, err := tee.Begin(ctx, "t", cols)
	require.NoError(t, err)
	require.NoError(t, w.WriteBatch(ctx, []schema.Row{{int64(1)}}))
	require.NoError(t, w.Commit(ctx))

	for _, m := range []*Memory{a, b} {
		tbl, ok := m.Get("t")
		require.True(t, ok)
		assert.Len(t, tbl.Rows, 1)
	}

	rels := []Relation{{Table: "t", ForeignKey: schema.ForeignKey{Column: "x_id", ReferencesTable: "x", ReferencesColumn: "id"}}}
	require.NoError(t, tee.Finish(ctx, rels))
	assert.Equal(t, rels, b.Relations())

	_, err = Tee{a, brokenSink{}}.Begin(ctx, "u", cols)
	assert.ErrorContains(t, err, "offline")
}
