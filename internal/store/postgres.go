package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

// Postgres mirrors generated tables into a PostgreSQL database. Each table
// is replaced inside one transaction so a failed load leaves the previous
// table untouched.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	// ForeignKeys adds constraints for every relation once a run finishes.
	ForeignKeys bool
}

// NewPostgres returns a sink writing through pool.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Postgres{pool: pool, logger: logger, ForeignKeys: true}
}

type postgresWriter struct {
	p     *Postgres
	tx    pgx.Tx
	table string
	names []string
	rows  int64
}

func (p *Postgres) Begin(ctx context.Context, table string, cols []schema.Column) (TableWriter, error) {
	drop, err := schema.BuildDropTableDDL(table)
	if err != nil {
		return nil, err
	}
	create, err := schema.BuildCreateTableDDL(table, cols)
	if err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	for _, stmt := range []string{drop, create} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return &postgresWriter{p: p, tx: tx, table: table, names: names}, nil
}

func (w *postgresWriter) WriteBatch(ctx context.Context, rows []schema.Row) error {
	src := make([][]any, len(rows))
	for i, r := range rows {
		src[i] = r
	}
	n, err := w.tx.CopyFrom(ctx, pgx.Identifier{w.table}, w.names, pgx.CopyFromRows(src))
	if err != nil {
		return fmt.Errorf("copy into %s (offset=%d, batch=%d): %w", w.table, w.rows, len(rows), err)
	}
	w.rows += n
	return nil
}

func (w *postgresWriter) Commit(ctx context.Context) error {
	if err := w.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", w.table, err)
	}
	w.p.logger.Debug("postgres table loaded", "table", w.table, "rows", w.rows)
	return nil
}

func (w *postgresWriter) Abort(ctx context.Context) error {
	if err := w.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// Finish adds foreign key constraints for the run's relations.
func (p *Postgres) Finish(ctx context.Context, rels []Relation) error {
	if !p.ForeignKeys || len(rels) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rels {
		stmt, err := schema.BuildAddForeignKeyDDL(r.Table, r.ForeignKey)
		if err != nil {
			return err
		}
		batch.Queue(stmt)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("adding foreign keys: %w", err)
	}
	return nil
}
