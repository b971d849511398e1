package fraud

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/synthdata/internal/forest"
)

// syntheticSnapshot marks emptied TRANSFER accounts as fraud.
func syntheticSnapshot(n int) []Transaction {
	rng := rand.New(rand.NewSource(9))
	out := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		var t Transaction
		if i%10 == 0 {
			bal := 1000 + rng.Float64()*5000
			t = FromInput("TRANSFER", bal, bal)
			t.IsFraud = true
		} else {
			bal := 1000 + rng.Float64()*5000
			t = FromInput(Categories[rng.Intn(len(Categories))], bal*rng.Float64()*0.5, bal)
		}
		out = append(out, t)
	}
	return out
}

func testOptions() TrainOptions {
	cfg := forest.DefaultConfig()
	cfg.Trees = 10
	return TrainOptions{
		Forest: cfg,
		Now:    func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
		Logger: quietLogger(),
	}
}

func TestTrainAndEvaluate(t *testing.T) {
	ctx := context.Background()
	txs := syntheticSnapshot(300)

	art, err := Train(ctx, txs, "manual__1", testOptions())
	require.NoError(t, err)
	assert.Equal(t, "manual__1", art.RunID)
	assert.Equal(t, 240, art.TrainRows)
	assert.Equal(t, 60, art.TestRows)
	assert.Equal(t, NewEncoder(nil).FeatureNames(), art.FeatureNames)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), art.CreatedAt)

	report, err := EvaluateArtifact(ctx, art, txs, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 60, report.Total)
	assert.Equal(t, 6, report.Classes[1].Support)
	assert.Greater(t, report.Accuracy, 0.9)
}

func TestTrainEmpty(t *testing.T) {
	_, err := Train(context.Background(), nil, "r", testOptions())
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestScorer(t *testing.T) {
	art, err := Train(context.Background(), syntheticSnapshot(300), "r", testOptions())
	require.NoError(t, err)
	s, err := NewScorer(art, quietLogger())
	require.NoError(t, err)

	p := s.Score(FromInput("TRANSFER", 4000, 4000))
	assert.Equal(t, LabelFraud, p.Label)
	assert.True(t, p.Fraud)
	assert.Greater(t, p.Confidence, 0.5)

	p = s.Score(FromInput("PAYMENT", 100, 4000))
	assert.Equal(t, LabelNotFraud, p.Label)
	assert.GreaterOrEqual(t, p.Confidence, 0.5)
}

func TestScorerReindexesFeatures(t *testing.T) {
	// A model trained on a reordered, partly unknown feature list.
	f, err := forest.Fit([][]float64{{0, 0}, {1, 0}, {0, 0}, {1, 0}}, []int{0, 1, 0, 1}, forest.Config{Trees: 3, Seed: 1})
	require.NoError(t, err)
	art := &Artifact{FeatureNames: []string{"emptied_account", "legacy_feature"}, Forest: f}
	s, err := NewScorer(art, quietLogger())
	require.NoError(t, err)

	assert.True(t, s.Score(FromInput("CASH_OUT", 10, 10)).Fraud)
	assert.False(t, s.Score(FromInput("CASH_OUT", 5, 10)).Fraud)

	_, err = NewScorer(&Artifact{}, nil)
	assert.Error(t, err)
}
