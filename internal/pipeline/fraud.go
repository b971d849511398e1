package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/synthdata/internal/fraud"
	"github.com/JonMunkholm/synthdata/internal/scheduler"
)

// Snapshot is the database side of the fraud pipeline.
type Snapshot interface {
	Clean(ctx context.Context, sampleSize int) (int64, error)
	Load(ctx context.Context) ([]fraud.Transaction, error)
}

// Fraud runs the clean, train and evaluate stages.
type Fraud struct {
	Snapshot   Snapshot
	Models     *fraud.ModelStore
	SampleSize int
	Train      fraud.TrainOptions
	Logger     *slog.Logger
	// ReportTo, when set, receives the rendered evaluation report.
	ReportTo io.Writer
}

// Result summarizes a full pipeline run.
type Result struct {
	RunID     string       `json:"run_id"`
	Rows      int64        `json:"rows"`
	ModelPath string       `json:"model_path"`
	Report    fraud.Report `json:"report"`
}

func (p *Fraud) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

func (p *Fraud) trainOptions() fraud.TrainOptions {
	opts := p.Train
	if opts.Logger == nil {
		opts.Logger = p.logger()
	}
	return opts
}

// Clean rebuilds the snapshot table.
func (p *Fraud) Clean(ctx context.Context) (int64, error) {
	return p.Snapshot.Clean(ctx, p.SampleSize)
}

// TrainModel trains on the snapshot and saves the model for runID,
// returning its path.
func (p *Fraud) TrainModel(ctx context.Context, runID string) (string, error) {
	txs, err := p.Snapshot.Load(ctx)
	if err != nil {
		return "", err
	}
	art, err := fraud.Train(ctx, txs, runID, p.trainOptions())
	if err != nil {
		return "", err
	}
	path, err := p.Models.Save(art)
	if err != nil {
		return "", err
	}
	p.logger().Info("model saved", "run_id", runID, "path", path)
	return path, nil
}

// Evaluate scores the model at modelPath on the snapshot's test split. An
// empty modelPath uses the latest model.
func (p *Fraud) Evaluate(ctx context.Context, modelPath string) (fraud.Report, error) {
	var (
		art *fraud.Artifact
		err error
	)
	if modelPath == "" {
		art, modelPath, err = p.Models.LoadLatest()
	} else {
		art, err = p.Models.Load(modelPath)
	}
	if err != nil {
		return fraud.Report{}, err
	}
	txs, err := p.Snapshot.Load(ctx)
	if err != nil {
		return fraud.Report{}, err
	}
	report, err := fraud.EvaluateArtifact(ctx, art, txs, p.trainOptions())
	if err != nil {
		return fraud.Report{}, err
	}
	p.logger().Info("model evaluated",
		"path", modelPath,
		"accuracy", report.Accuracy,
		"fraud_recall", report.Classes[len(report.Classes)-1].Recall)
	if p.ReportTo != nil {
		report.Render(p.ReportTo)
	}
	return report, nil
}

// RunAll runs clean, train and evaluate in order. Evaluation uses the model
// the training stage just wrote.
func (p *Fraud) RunAll(ctx context.Context, runID string) (*Result, error) {
	res := &Result{RunID: runID}
	var err error
	if res.Rows, err = p.Clean(ctx); err != nil {
		return res, fmt.Errorf("clean: %w", err)
	}
	if res.ModelPath, err = p.TrainModel(ctx, runID); err != nil {
		return res, fmt.Errorf("train: %w", err)
	}
	if res.Report, err = p.Evaluate(ctx, res.ModelPath); err != nil {
		return res, fmt.Errorf("evaluate: %w", err)
	}
	return res, nil
}

// Run implements scheduler.PipelineFunc. The run id comes from the
// scheduler, then conf["run_id"], then the clock.
func (p *Fraud) Run(ctx context.Context, conf map[string]any) error {
	runID := scheduler.RunID(ctx)
	if runID == "" {
		runID = confString(conf, "run_id")
	}
	if runID == "" {
		runID = ManualRunID(time.Now())
	}
	run := *p
	n, ok, err := confInt(conf, "sample_size")
	if err != nil {
		return err
	}
	if ok {
		run.SampleSize = int(n)
	}
	_, err = run.RunAll(ctx, runID)
	return err
}

// ManualRunID builds a run id for runs started outside a scheduler.
func ManualRunID(t time.Time) string {
	return "manual__" + t.UTC().Format(time.RFC3339)
}

// Register adds both pipelines to r. Either may be nil.
func Register(r Registry, g *Generator, f *Fraud) {
	if g != nil {
		r.Register(GeneratorID, g.Run)
	}
	if f != nil {
		r.Register(FraudID, f.Run)
	}
}
