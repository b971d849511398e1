package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/synthdata/internal/forest"
)

// TrainOptions control the split and the classifier.
type TrainOptions struct {
	TestFraction float64
	Seed         int64
	Forest       forest.Config
	Now          func() time.Time
	Logger       *slog.Logger
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		o.TestFraction = DefaultTestFraction
	}
	if o.Seed == 0 {
		o.Seed = DefaultSplitSeed
	}
	if o.Forest.Trees == 0 {
		o.Forest = forest.DefaultConfig()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Train fits a classifier on the training partition of txs.
func Train(ctx context.Context, txs []Transaction, runID string, opts TrainOptions) (*Artifact, error) {
	opts = opts.withDefaults()
	if len(txs) == 0 {
		return nil, ErrEmptySnapshot
	}
	enc := NewEncoder(opts.Logger)
	X, y := enc.Matrix(txs)
	split := StratifiedSplit(y, opts.TestFraction, opts.Seed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts.Logger.Info("training classifier",
		"run_id", runID,
		"train_rows", len(split.Train),
		"test_rows", len(split.Test),
		"trees", opts.Forest.Trees)

	f, err := forest.Fit(pick(X, split.Train), pick(y, split.Train), opts.Forest)
	if err != nil {
		return nil, fmt.Errorf("fitting classifier: %w", err)
	}
	return &Artifact{
		RunID:        runID,
		CreatedAt:    opts.Now().UTC(),
		FeatureNames: enc.FeatureNames(),
		Categories:   enc.Categories,
		TrainRows:    len(split.Train),
		TestRows:     len(split.Test),
		Forest:       f,
	}, nil
}

// EvaluateArtifact scores art on the test partition of txs, using the
// same split Train used.
func EvaluateArtifact(ctx context.Context, art *Artifact, txs []Transaction, opts TrainOptions) (Report, error) {
	opts = opts.withDefaults()
	if len(txs) == 0 {
		return Report{}, ErrEmptySnapshot
	}
	scorer, err := NewScorer(art, opts.Logger)
	if err != nil {
		return Report{}, err
	}
	labels := make([]int, len(txs))
	for i, t := range txs {
		labels[i] = t.Label()
	}
	split := StratifiedSplit(labels, opts.TestFraction, opts.Seed)

	yTrue := make([]int, 0, len(split.Test))
	yPred := make([]int, 0, len(split.Test))
	for _, i := range split.Test {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		yTrue = append(yTrue, labels[i])
		yPred = append(yPred, scorer.Predict(txs[i]))
	}
	return Evaluate(yTrue, yPred, ClassLabels), nil
}
