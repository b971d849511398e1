package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/fraud"
	"github.com/JonMunkholm/synthdata/internal/pipeline"
)

// fraudPipeline connects to DATABASE_URL and returns the fraud pipeline
// together with a func closing the connection.
func (a *app) fraudPipeline(ctx context.Context) (*pipeline.Fraud, func(), error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	db, err := fraud.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	p := &pipeline.Fraud{
		Snapshot:   fraud.NewStore(db, a.logger),
		Models:     fraud.NewModelStore(a.cfg.ModelDir),
		SampleSize: a.cfg.SampleSize,
		Train:      fraud.TrainOptions{Seed: a.cfg.Seed},
		Logger:     a.logger,
	}
	return p, func() { db.Close() }, nil
}

func newPipelineCmd(a *app) *cobra.Command {
	var sampleSize int
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run stages of the fraud classifier pipeline",
	}
	cmd.PersistentFlags().IntVar(&sampleSize, "sample-size", 0, "Rows sampled into the snapshot (default SAMPLE_SIZE)")

	// withPipeline opens the pipeline for one stage command.
	withPipeline := func(fn func(cmd *cobra.Command, args []string, p *pipeline.Fraud) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			p, closeDB, err := a.fraudPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if sampleSize > 0 {
				p.SampleSize = sampleSize
			}
			p.ReportTo = cmd.OutOrStdout()
			return fn(cmd, args, p)
		}
	}

	var runID string
	runIDOrManual := func() string {
		if runID != "" {
			return runID
		}
		return pipeline.ManualRunID(time.Now())
	}

	clean := &cobra.Command{
		Use:   "clean",
		Short: "Rebuild the cleaned snapshot table from raw transactions",
		RunE: withPipeline(func(cmd *cobra.Command, _ []string, p *pipeline.Fraud) error {
			n, err := p.Clean(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows in %s\n", n, fraud.SnapshotTable)
			return nil
		}),
	}

	train := &cobra.Command{
		Use:   "train",
		Short: "Train a model on the snapshot and save it",
		RunE: withPipeline(func(cmd *cobra.Command, _ []string, p *pipeline.Fraud) error {
			path, err := p.TrainModel(cmd.Context(), runIDOrManual())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}
	train.Flags().StringVar(&runID, "run-id", "", "Run id the model file is named after")

	var modelPath string
	evaluate := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the classification report of a model on the test split",
		RunE: withPipeline(func(cmd *cobra.Command, _ []string, p *pipeline.Fraud) error {
			_, err := p.Evaluate(cmd.Context(), modelPath)
			return err
		}),
	}
	evaluate.Flags().StringVarP(&modelPath, "model", "m", "", "Model file (default latest in MODEL_DIR)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Clean, train and evaluate in sequence",
		RunE: withPipeline(func(cmd *cobra.Command, _ []string, p *pipeline.Fraud) error {
			res, err := p.RunAll(cmd.Context(), runIDOrManual())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nrun %s: %d rows, model %s\n", res.RunID, res.Rows, res.ModelPath)
			return nil
		}),
	}
	run.Flags().StringVar(&runID, "run-id", "", "Run id the model file is named after")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create the raw transaction table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withFraudStore(cmd.Context(), func(s *fraud.Store) error {
				return s.Migrate(cmd.Context())
			})
		},
	}

	importCSV := &cobra.Command{
		Use:   "import-csv <file>",
		Short: "Load a transaction CSV into the raw transaction table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return a.withFraudStore(cmd.Context(), func(s *fraud.Store) error {
				if err := s.Migrate(cmd.Context()); err != nil {
					return err
				}
				n, err := s.ImportCSV(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows imported into %s\n", n, fraud.SourceTable)
				return nil
			})
		},
	}

	cmd.AddCommand(clean, train, evaluate, run, migrate, importCSV)
	return cmd
}

func (a *app) withFraudStore(ctx context.Context, fn func(*fraud.Store) error) error {
	if err := a.cfg.RequireDatabase(); err != nil {
		return err
	}
	db, err := fraud.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(fraud.NewStore(db, a.logger))
}
