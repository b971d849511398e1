package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/datagen"
	"github.com/JonMunkholm/synthdata/internal/schema"
	"github.com/JonMunkholm/synthdata/internal/store"
)

type generateFlags struct {
	schemaPath     string
	outDir         string
	seed           int64
	batchSize      int
	batchThreshold int
	postgres       bool
	vars           map[string]string
}

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic database from a schema file",
		Long: `Reads the schema file, orders tables so referenced tables come first, and writes
one Parquet file per table. With --postgres the rows are also loaded into DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.applyGenerateDefaults(cmd, &f)
			return a.runGenerate(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVarP(&f.schemaPath, "schema", "s", "", "Schema file (default SCHEMA_PATH)")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Output directory (default DATA_DIR)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (default SEED)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Rows per batch for large tables (default BATCH_SIZE)")
	cmd.Flags().IntVar(&f.batchThreshold, "batch-threshold", 0, "Tables above this row count are written in batches (default BATCH_THRESHOLD)")
	cmd.Flags().BoolVar(&f.postgres, "postgres", false, "Also load tables into DATABASE_URL (default LOAD_POSTGRES)")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "Schema variable as name=value, available as var.name")
	return cmd
}

func (a *app) applyGenerateDefaults(cmd *cobra.Command, f *generateFlags) {
	if f.schemaPath == "" {
		f.schemaPath = a.cfg.SchemaPath
	}
	if f.outDir == "" {
		f.outDir = a.cfg.DataDir
	}
	if !cmd.Flags().Changed("seed") {
		f.seed = a.cfg.Seed
	}
	if f.batchSize <= 0 {
		f.batchSize = a.cfg.BatchSize
	}
	if f.batchThreshold <= 0 {
		f.batchThreshold = a.cfg.BatchThreshold
	}
	if !cmd.Flags().Changed("postgres") {
		f.postgres = a.cfg.LoadPostgres
	}
}

func (a *app) loadSchema(path string, vars map[string]string) ([]schema.TableSpec, error) {
	s, err := schema.LoadHCLFile(path, schema.Vars(vars))
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(s.Tables); err != nil {
		return nil, err
	}
	return schema.Order(s.Tables)
}

// sink returns the table sink for generation: the Parquet directory, teed
// into PostgreSQL when requested. The returned func releases resources.
func (a *app) sink(ctx context.Context, outDir string, postgres bool) (store.Sink, func(), error) {
	dir := store.NewParquetDir(outDir, a.logger)
	if !postgres {
		return dir, func() {}, nil
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := pgxpool.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}
	a.logger.Info("loading tables into postgres", "database", a.cfg.RedactedDatabaseURL())
	return store.Tee{dir, store.NewPostgres(pool, a.logger)}, pool.Close, nil
}

func (a *app) runGenerate(ctx context.Context, out io.Writer, f generateFlags) error {
	tables, err := a.loadSchema(f.schemaPath, f.vars)
	if err != nil {
		return err
	}
	sink, release, err := a.sink(ctx, f.outDir, f.postgres)
	if err != nil {
		return err
	}
	defer release()

	engine := datagen.New(sink, datagen.Options{
		BatchSize:      f.batchSize,
		BatchThreshold: f.batchThreshold,
		Seed:           f.seed,
		Logger:         a.logger,
		OnBatch: func(p datagen.Progress) {
			a.logger.Info("batch written", "table", p.Table, "batch", p.Batch, "of", p.Batches, "rows", p.Rows, "total", p.Total)
		},
	})
	report, err := engine.Run(ctx, tables)
	if report != nil {
		renderReport(out, report)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nWrote %d tables to %s in %s\n", len(report.Tables), f.outDir, report.Elapsed.Round(time.Millisecond))
	return nil
}

func renderReport(w io.Writer, r *datagen.Report) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Table", "Rows", "Batches", "Keys", "Columns", "Elapsed"})
	tbl.SetAutoFormatHeaders(false)
	for _, t := range r.Tables {
		keys := string(t.KeyKind)
		if t.Pattern != "" {
			keys = t.Pattern
		}
		tbl.Append([]string{
			t.Name,
			strconv.Itoa(t.Rows),
			strconv.Itoa(t.Batches),
			keys,
			strconv.Itoa(len(t.Columns)),
			t.Elapsed.Round(time.Millisecond).String(),
		})
	}
	tbl.Render()
}
