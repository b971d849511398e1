package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/synthdata/internal/scheduler"
	"github.com/JonMunkholm/synthdata/internal/schema"
)

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore(0)
	defer s.Stop()

	sess := s.Create()
	require.NotEmpty(t, sess.ID)
	assert.False(t, sess.Saved)

	updated, err := s.Update(sess.ID, func(x *Session) error {
		x.Tables = []schema.TableSpec{{Name: "a", RowCount: 1}}
		x.SchemaText = `table "a" { rows = 1 }`
		x.Saved = true
		x.RunID = "run-1"
		x.RunState = scheduler.StateQueued
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Saved)

	// Returned copies do not alias the stored session.
	updated.Tables[0].Name = "mutated"
	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Tables[0].Name)

	owner, ok := s.FindByRun("run-1")
	require.True(t, ok)
	assert.Equal(t, sess.ID, owner.ID)

	_, err = s.Update(sess.ID, func(x *Session) error {
		x.Saved = false
		return errors.New("rejected")
	})
	require.Error(t, err)
	got, _ = s.Get(sess.ID)
	assert.True(t, got.Saved)

	s.Delete(sess.ID)
	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := s.Create()
	b := s.Create()
	now = now.Add(40 * time.Minute)
	_, err := s.Get(b.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	_, err = s.Get(a.ID)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}
