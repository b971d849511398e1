// Package store persists generated tables.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

// ErrNotFound is returned when a persisted table does not exist.
var ErrNotFound = errors.New("table not found")

// Sink receives generated tables one at a time.
type Sink interface {
	// Begin starts a table. Any existing table of the same name is replaced
	// once the writer commits.
	Begin(ctx context.Context, table string, cols []schema.Column) (TableWriter, error)
}

// TableWriter appends batches to one table. Exactly one of Commit or Abort
// must be called. After Abort no artifact of the table is left behind.
type TableWriter interface {
	WriteBatch(ctx context.Context, rows []schema.Row) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Relation is a resolved foreign key of a generated table.
type Relation struct {
	Table string
	schema.ForeignKey
}

// Finisher is implemented by sinks that need a final step once every table
// of a run is committed, such as adding foreign key constraints.
type Finisher interface {
	Finish(ctx context.Context, rels []Relation) error
}

// Table is a fully materialized table.
type Table struct {
	Name    string          `json:"name"`
	Columns []schema.Column `json:"columns"`
	Rows    []schema.Row    `json:"rows"`
}

// Memory keeps committed tables in memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*Table
	rels   []Relation
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*Table)}
}

type memoryWriter struct {
	m     *Memory
	table *Table
	done  bool
}

func (m *Memory) Begin(_ context.Context, table string, cols []schema.Column) (TableWriter, error) {
	return &memoryWriter{m: m, table: &Table{Name: table, Columns: append([]schema.Column(nil), cols...)}}, nil
}

func (w *memoryWriter) WriteBatch(_ context.Context, rows []schema.Row) error {
	if w.done {
		return fmt.Errorf("write to finished table %s", w.table.Name)
	}
	for _, r := range rows {
		if len(r) != len(w.table.Columns) {
			return fmt.Errorf("table %s: row has %d values, want %d", w.table.Name, len(r), len(w.table.Columns))
		}
	}
	w.table.Rows = append(w.table.Rows, rows...)
	return nil
}

func (w *memoryWriter) Commit(context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	w.m.mu.Lock()
	w.m.tables[w.table.Name] = w.table
	w.m.mu.Unlock()
	return nil
}

func (w *memoryWriter) Abort(context.Context) error {
	w.done = true
	w.table = nil
	return nil
}

// Finish records the run's relations.
func (m *Memory) Finish(_ context.Context, rels []Relation) error {
	m.mu.Lock()
	m.rels = append([]Relation(nil), rels...)
	m.mu.Unlock()
	return nil
}

// Relations returns the relations recorded by the last run.
func (m *Memory) Relations() []Relation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Relation(nil), m.rels...)
}

// Get returns a committed table.
func (m *Memory) Get(name string) (*Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	return t, ok
}

func (m *Memory) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Open(_ context.Context, table string) (Cursor, error) {
	t, ok := m.Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, table)
	}
	return &sliceCursor{cols: t.Columns, rows: t.Rows}, nil
}

// Tee writes every table to all of its sinks.
type Tee []Sink

type teeWriter []TableWriter

func (t Tee) Begin(ctx context.Context, table string, cols []schema.Column) (TableWriter, error) {
	ws := make(teeWriter, 0, len(t))
	for _, s := range t {
		w, err := s.Begin(ctx, table, cols)
		if err != nil {
			_ = ws.Abort(ctx)
			return nil, err
		}
		ws = append(ws, w)
	}
	return ws, nil
}

func (t Tee) Finish(ctx context.Context, rels []Relation) error {
	var errs []error
	for _, s := range t {
		if f, ok := s.(Finisher); ok {
			errs = append(errs, f.Finish(ctx, rels))
		}
	}
	return errors.Join(errs...)
}

func (ws teeWriter) WriteBatch(ctx context.Context, rows []schema.Row) error {
	for _, w := range ws {
		if err := w.WriteBatch(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

// Commit commits each writer in turn. A failure aborts the writers that
// have not committed yet; earlier commits stand.
func (ws teeWriter) Commit(ctx context.Context) error {
	for i, w := range ws {
		if err := w.Commit(ctx); err != nil {
			_ = ws[i+1:].Abort(ctx)
			return err
		}
	}
	return nil
}

func (ws teeWriter) Abort(ctx context.Context) error {
	var errs []error
	for _, w := range ws {
		errs = append(errs, w.Abort(ctx))
	}
	return errors.Join(errs...)
}
