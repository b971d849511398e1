package fraud

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/synthdata/internal/forest"
)

func tinyArtifact(t *testing.T, runID string) *Artifact {
	t.Helper()
	f, err := forest.Fit([][]float64{{0}, {1}, {0}, {1}}, []int{0, 1, 0, 1}, forest.Config{Trees: 2, Seed: 1})
	require.NoError(t, err)
	return &Artifact{RunID: runID, FeatureNames: []string{"amount"}, Categories: Categories, Forest: f}
}

func TestSanitizeRunID(t *testing.T) {
	assert.Equal(t, "manual__2024-05-01T10-00-00_00-00", SanitizeRunID("manual__2024-05-01T10:00:00+00:00"))
	assert.Equal(t, "fraud_detection_model_local__abc.json", ModelFileName("local__abc"))
}

func TestModelStoreSaveLoad(t *testing.T) {
	m := NewModelStore(filepath.Join(t.TempDir(), "models"))
	path, err := m.Save(tinyArtifact(t, "run:1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), "fraud_detection_model_run-1.json"), path)

	a, err := m.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run:1", a.RunID)
	assert.Equal(t, 1, a.Forest.Predict([]float64{1}))
}

func TestModelStoreLatest(t *testing.T) {
	m := NewModelStore(t.TempDir())

	_, err := m.Latest()
	assert.ErrorIs(t, err, ErrNoModel)

	old, err := m.Save(tinyArtifact(t, "old"))
	require.NoError(t, err)
	recent, err := m.Save(tinyArtifact(t, "recent"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.json"), []byte("{}"), 0o644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(recent, base, base))
	require.NoError(t, os.Chtimes(old, base.Add(time.Minute), base.Add(time.Minute)))

	got, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, old, got)

	a, path, err := m.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, old, path)
	assert.Equal(t, "old", a.RunID)
}

func TestModelStoreMissingDir(t *testing.T) {
	m := NewModelStore(filepath.Join(t.TempDir(), "absent"))
	_, _, err := m.LoadLatest()
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = m.Load(filepath.Join(m.Dir(), "x.json"))
	assert.ErrorIs(t, err, ErrNoModel)
}
