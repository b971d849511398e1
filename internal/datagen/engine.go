// Package datagen generates synthetic tables with referential integrity.
package datagen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/JonMunkholm/synthdata/internal/schema"
	"github.com/JonMunkholm/synthdata/internal/store"
)

const (
	DefaultBatchSize      = 100_000
	DefaultBatchThreshold = 100_000
)

// Options tune a generation run. The zero value uses the defaults.
type Options struct {
	// BatchSize is the number of rows per batch for tables larger than
	// BatchThreshold.
	BatchSize      int
	BatchThreshold int
	Seed           int64
	Now            func() time.Time
	Logger         *slog.Logger
	// OnBatch, when set, is called after every persisted batch.
	OnBatch func(Progress)
}

// Progress reports one persisted batch.
type Progress struct {
	Table   string `json:"table"`
	Batch   int    `json:"batch"`
	Batches int    `json:"batches"`
	Rows    int    `json:"rows"`
	Total   int    `json:"total"`
}

// KeyKind describes how a table's primary keys were produced.
type KeyKind string

const (
	KeyInteger KeyKind = "integer"
	KeyPattern KeyKind = "pattern"
)

// TableReport summarizes one generated table.
type TableReport struct {
	Name    string          `json:"name"`
	Rows    int             `json:"rows"`
	Batches int             `json:"batches"`
	KeyKind KeyKind         `json:"keyKind"`
	Pattern string          `json:"pattern,omitempty"`
	Columns []schema.Column `json:"columns"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Report summarizes a generation run.
type Report struct {
	Tables  []TableReport `json:"tables"`
	Elapsed time.Duration `json:"elapsed"`
}

// Engine turns ordered table specs into persisted tables.
type Engine struct {
	sink   store.Sink
	opts   Options
	logger *slog.Logger
}

// New creates an engine writing to sink.
func New(sink store.Sink, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = DefaultBatchThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{sink: sink, opts: opts, logger: logger}
}

// BatchSizes splits rows into the batch sizes the engine writes.
func (e *Engine) BatchSizes(rows int) []int {
	if rows <= e.opts.BatchThreshold {
		return []int{rows}
	}
	var sizes []int
	for remaining := rows; remaining > 0; remaining -= e.opts.BatchSize {
		sizes = append(sizes, min(remaining, e.opts.BatchSize))
	}
	return sizes
}

// Run generates tables in the given order. Tables must already be ordered so
// that referenced tables come first; a reference to a table that has not
// been generated fails with ErrUnresolvedReference. Tables committed before a
// failure stay persisted.
func (e *Engine) Run(ctx context.Context, tables []schema.TableSpec) (*Report, error) {
	start := time.Now()
	tables = schema.Normalize(tables)
	rng := rand.New(rand.NewSource(e.opts.Seed))
	faker := NewFaker(rng, e.opts.Now().UTC())
	reg := NewRegistry()

	// lastUse[t] is the index of the last table referencing t.
	lastUse := make(map[string]int)
	for i, t := range tables {
		for _, fk := range t.ForeignKeys {
			lastUse[fk.ReferencesTable] = i
		}
	}

	report := &Report{}
	var rels []store.Relation
	for i, t := range tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		last, referenced := lastUse[t.Name]
		referenced = referenced && last > i
		tr, pool, tableRels, err := e.generate(ctx, t, rng, faker, reg, referenced)
		if err != nil {
			return report, fmt.Errorf("table %s: %w", t.Name, err)
		}
		report.Tables = append(report.Tables, *tr)
		rels = append(rels, tableRels...)

		if referenced {
			reg.Register(pool)
		}
		for _, fk := range t.ForeignKeys {
			if lastUse[fk.ReferencesTable] == i {
				reg.Drop(fk.ReferencesTable)
			}
		}
	}

	if f, ok := e.sink.(store.Finisher); ok {
		if err := f.Finish(ctx, rels); err != nil {
			return report, fmt.Errorf("finishing run: %w", err)
		}
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// keyPlan decides how t's primary keys are produced.
func (e *Engine) keyPlan(t schema.TableSpec) (schema.KeyPattern, bool) {
	if t.KeyPattern != "" {
		p, err := schema.ParseKeyPattern(t.KeyPattern)
		if err != nil {
			e.logger.Warn("ignoring key pattern, using integer keys", "table", t.Name, "error", err)
			return schema.KeyPattern{}, false
		}
		return p, true
	}
	return schema.DetectKeyPattern(t.Description)
}

func (e *Engine) generate(ctx context.Context, t schema.TableSpec, rng *rand.Rand, faker *Faker, reg *Registry, retain bool) (*TableReport, *KeyPool, []store.Relation, error) {
	started := time.Now()
	if t.RowCount <= 0 {
		return nil, nil, nil, fmt.Errorf("row count must be positive, got %d", t.RowCount)
	}

	pattern, patterned := e.keyPlan(t)
	keyType := schema.TypeInteger
	if patterned {
		keyType = schema.TypeString
	}
	layout := t.Resolve(keyType)

	refs := make([]*KeyPool, len(layout.ForeignKeys))
	rels := make([]store.Relation, len(layout.ForeignKeys))
	for i, fk := range layout.ForeignKeys {
		p, err := reg.Lookup(fk.ReferencesTable, fk.ReferencesColumn)
		if err != nil {
			return nil, nil, nil, err
		}
		refs[i] = p
		layout.Columns[fk.Index].Type = p.Type
		rels[i] = store.Relation{Table: t.Name, ForeignKey: fk.ForeignKey}
	}

	w, err := e.sink.Begin(ctx, t.Name, layout.Columns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("begin: %w", err)
	}
	abort := func(cause error) error {
		if aerr := w.Abort(ctx); aerr != nil {
			e.logger.Error("abort failed", "table", t.Name, "error", aerr)
		}
		return cause
	}

	pool := &KeyPool{Table: t.Name, Column: t.KeyColumn(), Type: keyType}
	sizes := e.BatchSizes(t.RowCount)
	seq := 0
	for b, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, abort(err)
		}
		rows := make([]schema.Row, size)
		for r := range rows {
			seq++
			row := make(schema.Row, len(layout.Columns))
			var key any = int64(seq)
			if patterned {
				key = pattern.Format(seq)
			}
			row[0] = key
			if retain {
				pool.add(key)
			}
			for i, fk := range layout.ForeignKeys {
				row[fk.Index] = refs[i].Sample(rng)
			}
			for i, col := range layout.Values {
				row[layout.ValueIndex[i]] = faker.Value(col, seq)
			}
			rows[r] = row
		}
		if err := w.WriteBatch(ctx, rows); err != nil {
			return nil, nil, nil, abort(fmt.Errorf("write batch %d: %w", b+1, err))
		}
		e.logger.Debug("batch written", "table", t.Name, "batch", b+1, "batches", len(sizes), "rows", size)
		if e.opts.OnBatch != nil {
			e.opts.OnBatch(Progress{Table: t.Name, Batch: b + 1, Batches: len(sizes), Rows: seq, Total: t.RowCount})
		}
	}
	if err := w.Commit(ctx); err != nil {
		return nil, nil, nil, abort(fmt.Errorf("commit: %w", err))
	}

	tr := &TableReport{
		Name:    t.Name,
		Rows:    seq,
		Batches: len(sizes),
		KeyKind: KeyInteger,
		Columns: layout.Columns,
		Elapsed: time.Since(started),
	}
	if patterned {
		tr.KeyKind = KeyPattern
		tr.Pattern = pattern.String()
	}
	e.logger.Info("table generated", "table", t.Name, "rows", tr.Rows, "batches", tr.Batches, "keys", tr.KeyKind, "elapsed", tr.Elapsed)
	return tr, pool, rels, nil
}
