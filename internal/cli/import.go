package cli

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		out        string
		schemaName string
		rows       int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Write a schema file describing the tables of an existing database",
		Long: `Introspects DATABASE_URL and writes its tables, primary keys and foreign keys as a
schema file, so an existing database can serve as the template for a synthetic one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDatabase(); err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			in := schema.NewIntrospector(pool, schemaName, a.cfg.QueryTimeout)
			if rows > 0 {
				in.DefaultRows = rows
			}
			s, err := in.Import(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("schema imported", "database", a.cfg.CurrentDatabase(), "tables", len(s.Tables))

			body := schema.MarshalHCL(s)
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(out, body, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout")
	cmd.Flags().StringVar(&schemaName, "db-schema", "public", "PostgreSQL schema to read")
	cmd.Flags().IntVar(&rows, "rows", 0, "Row count for tables without statistics")
	return cmd
}
