package forest

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds two clusters split on feature 0 with a noise feature.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		label := 0
		if i%5 == 0 {
			label = 1
		}
		x0 := rng.Float64() * 10
		if label == 1 {
			x0 += 20
		}
		X = append(X, []float64{x0, rng.Float64() * 100, rng.Float64()})
		y = append(y, label)
	}
	return X, y
}

func TestFitLearnsSeparableSet(t *testing.T) {
	X, y := separable(400, 1)
	cfg := DefaultConfig()
	cfg.Trees = 15
	f, err := Fit(X, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, f.Classes)
	assert.Equal(t, 3, f.Features)
	assert.Len(t, f.Trees, 15)

	assert.Equal(t, 1, f.Predict([]float64{25, 50, 0.5}))
	assert.Equal(t, 0, f.Predict([]float64{3, 50, 0.5}))

	probs := f.PredictProba([]float64{25, 50, 0.5})
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], 0.5)
}

func TestFitDeterministic(t *testing.T) {
	X, y := separable(200, 2)
	cfg := DefaultConfig()
	cfg.Trees = 5

	a, err := Fit(X, y, cfg)
	require.NoError(t, err)
	b, err := Fit(X, y, cfg)
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestForestJSONRoundTrip(t *testing.T) {
	X, y := separable(100, 3)
	cfg := DefaultConfig()
	cfg.Trees = 3
	f, err := Fit(X, y, cfg)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var back Forest
	require.NoError(t, json.Unmarshal(data, &back))

	for _, x := range X[:20] {
		assert.Equal(t, f.PredictProba(x), back.PredictProba(x))
	}
}

func TestFitErrors(t *testing.T) {
	_, err := Fit(nil, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Fit([][]float64{{1}, {2}}, []int{0}, DefaultConfig())
	assert.Error(t, err)

	_, err = Fit([][]float64{{1}, {2, 3}}, []int{0, 1}, DefaultConfig())
	assert.Error(t, err)

	_, err = Fit([][]float64{{1}}, []int{-1}, DefaultConfig())
	assert.Error(t, err)
}

func TestSingleClass(t *testing.T) {
	f, err := Fit([][]float64{{1}, {2}, {3}}, []int{0, 0, 0}, Config{Trees: 2, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Predict([]float64{10}))
	assert.Equal(t, []float64{1}, f.PredictProba([]float64{10}))
}

func TestMaxDepthBounds(t *testing.T) {
	X, y := separable(200, 4)
	f, err := Fit(X, y, Config{Trees: 1, MaxDepth: 1, Seed: 1})
	require.NoError(t, err)
	// A depth-one tree has at most a root and two leaves.
	assert.LessOrEqual(t, len(f.Trees[0].Nodes), 3)
}
