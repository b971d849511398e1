package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/synthdata/internal/datagen"
	"github.com/JonMunkholm/synthdata/internal/schema"
	"github.com/JonMunkholm/synthdata/internal/store"
)

// Generator runs the synthetic database generation pipeline.
type Generator struct {
	Sink store.Sink
	// SchemaPath is read when the run conf carries no schema text.
	SchemaPath string
	Options    datagen.Options
	Logger     *slog.Logger
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g.Logger
}

// LoadSchema returns the validated, ordered tables for a run. conf["schema"]
// holds HCL text; otherwise the schema file is read.
func (g *Generator) LoadSchema(conf map[string]any) ([]schema.TableSpec, error) {
	var (
		s   *schema.Schema
		err error
	)
	if text := confString(conf, "schema"); text != "" {
		s, err = schema.ParseHCL([]byte(text), "run.hcl", nil)
	} else if g.SchemaPath != "" {
		s, err = schema.LoadHCLFile(g.SchemaPath, nil)
	} else {
		return nil, errors.New("no schema given")
	}
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(s.Tables); err != nil {
		return nil, err
	}
	return schema.Order(s.Tables)
}

// Generate loads the schema and runs the engine.
func (g *Generator) Generate(ctx context.Context, conf map[string]any) (*datagen.Report, error) {
	tables, err := g.LoadSchema(conf)
	if err != nil {
		return nil, err
	}
	opts := g.Options
	opts.Logger = g.logger()
	seed, ok, err := confInt(conf, "seed")
	if err != nil {
		return nil, err
	}
	if ok {
		opts.Seed = seed
	}

	report, err := datagen.New(g.Sink, opts).Run(ctx, tables)
	if err != nil {
		return report, fmt.Errorf("generating database: %w", err)
	}
	rows := 0
	for _, t := range report.Tables {
		rows += t.Rows
	}
	g.logger().Info("database generated", "tables", len(report.Tables), "rows", rows, "elapsed", report.Elapsed)
	return report, nil
}

// Run implements scheduler.PipelineFunc.
func (g *Generator) Run(ctx context.Context, conf map[string]any) error {
	_, err := g.Generate(ctx, conf)
	return err
}
