package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

// Cursor iterates over the rows of a persisted table.
type Cursor interface {
	Columns() []schema.Column
	// Next returns io.EOF after the last row.
	Next() (schema.Row, error)
	Close() error
}

// Reader gives access to persisted tables.
type Reader interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, table string) (Cursor, error)
}

// Preview returns up to limit rows of a persisted table. A limit of zero
// or less reads the whole table.
func Preview(ctx context.Context, r Reader, table string, limit int) (*Table, error) {
	cur, err := r.Open(ctx, table)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	out := &Table{Name: table, Columns: cur.Columns(), Rows: []schema.Row{}}
	for limit <= 0 || len(out.Rows) < limit {
		row, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", table, err)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

type sliceCursor struct {
	cols []schema.Column
	rows []schema.Row
	pos  int
}

func (c *sliceCursor) Columns() []schema.Column { return c.cols }

func (c *sliceCursor) Next() (schema.Row, error) {
	if c.pos >= len(c.rows) {
		return nil, io.EOF
	}
	c.pos++
	return c.rows[c.pos-1], nil
}

func (c *sliceCursor) Close() error { return nil }
