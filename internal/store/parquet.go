package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

const (
	parquetExt = ".parquet"
	// columnsMetaKey stores the declared column order and types; parquet
	// groups sort their fields by name.
	columnsMetaKey = "synthdata.columns"
	readChunk      = 256
)

// ParquetDir stores each table as <dir>/<table>.parquet.
type ParquetDir struct {
	dir    string
	logger *slog.Logger
}

// NewParquetDir returns a store rooted at dir. The directory is created on
// first write.
func NewParquetDir(dir string, logger *slog.Logger) *ParquetDir {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ParquetDir{dir: dir, logger: logger}
}

// Dir returns the root directory.
func (d *ParquetDir) Dir() string { return d.dir }

// Path returns the file path of table.
func (d *ParquetDir) Path(table string) string {
	return filepath.Join(d.dir, table+parquetExt)
}

func parquetNode(t schema.ValueType) (parquet.Node, error) {
	switch t {
	case schema.TypeInteger:
		return parquet.Int(64), nil
	case schema.TypeString:
		return parquet.String(), nil
	case schema.TypeFloat:
		return parquet.Leaf(parquet.DoubleType), nil
	case schema.TypeTimestamp:
		return parquet.Timestamp(parquet.Millisecond), nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", t)
	}
}

// leafIndexes maps declared column positions to parquet leaf positions.
func leafIndexes(sch *parquet.Schema, cols []schema.Column) ([]int, error) {
	pos := make(map[string]int)
	for i, f := range sch.Fields() {
		pos[f.Name()] = i
	}
	out := make([]int, len(cols))
	for i, c := range cols {
		idx, ok := pos[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %s missing from parquet schema", c.Name)
		}
		out[i] = idx
	}
	return out, nil
}

type parquetWriter struct {
	d      *ParquetDir
	table  string
	cols   []schema.Column
	leaves []int
	tmp    *os.File
	w      *parquet.Writer
	rows   int
	buf    []parquet.Row
}

func (d *ParquetDir) Begin(_ context.Context, table string, cols []schema.Column) (TableWriter, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		node, err := parquetNode(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", table, c.Name, err)
		}
		group[c.Name] = node
	}
	sch := parquet.NewSchema(table, group)
	leaves, err := leafIndexes(sch, cols)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.dir, err)
	}
	tmp, err := os.CreateTemp(d.dir, "."+table+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	w := parquet.NewWriter(tmp, sch, parquet.KeyValueMetadata(columnsMetaKey, string(meta)))
	return &parquetWriter{d: d, table: table, cols: cols, leaves: leaves, tmp: tmp, w: w}, nil
}

func (pw *parquetWriter) encode(row schema.Row) (parquet.Row, error) {
	if len(row) != len(pw.cols) {
		return nil, fmt.Errorf("row has %d values, want %d", len(row), len(pw.cols))
	}
	out := make(parquet.Row, len(row))
	for i, v := range row {
		var pv parquet.Value
		col := pw.cols[i]
		switch x := v.(type) {
		case int64:
			if col.Type == schema.TypeInteger {
				pv = parquet.Int64Value(x)
			}
		case string:
			if col.Type == schema.TypeString {
				pv = parquet.ByteArrayValue([]byte(x))
			}
		case float64:
			if col.Type == schema.TypeFloat {
				pv = parquet.DoubleValue(x)
			}
		case time.Time:
			if col.Type == schema.TypeTimestamp {
				pv = parquet.Int64Value(x.UnixMilli())
			}
		}
		if pv.IsNull() {
			return nil, fmt.Errorf("column %s: %T is not a %s value", col.Name, v, col.Type)
		}
		leaf := pw.leaves[i]
		out[leaf] = pv.Level(0, 0, leaf)
	}
	return out, nil
}

func (pw *parquetWriter) WriteBatch(_ context.Context, rows []schema.Row) error {
	pw.buf = pw.buf[:0]
	for _, r := range rows {
		pr, err := pw.encode(r)
		if err != nil {
			return fmt.Errorf("table %s: %w", pw.table, err)
		}
		pw.buf = append(pw.buf, pr)
	}
	if _, err := pw.w.WriteRows(pw.buf); err != nil {
		return fmt.Errorf("table %s: %w", pw.table, err)
	}
	// One row group per batch keeps buffered pages bounded by the batch size.
	if err := pw.w.Flush(); err != nil {
		return fmt.Errorf("table %s: %w", pw.table, err)
	}
	pw.rows += len(rows)
	return nil
}

func (pw *parquetWriter) Commit(context.Context) error {
	if pw.tmp == nil {
		return errors.New("writer already finished")
	}
	if err := pw.w.Close(); err != nil {
		return pw.fail(err)
	}
	if err := pw.tmp.Sync(); err != nil {
		return pw.fail(err)
	}
	if err := pw.tmp.Close(); err != nil {
		return pw.fail(err)
	}
	name := pw.tmp.Name()
	pw.tmp = nil
	if err := os.Rename(name, pw.d.Path(pw.table)); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("table %s: %w", pw.table, err)
	}
	pw.d.logger.Debug("parquet table written", "table", pw.table, "rows", pw.rows, "path", pw.d.Path(pw.table))
	return nil
}

func (pw *parquetWriter) fail(err error) error {
	_ = pw.Abort(context.Background())
	return fmt.Errorf("table %s: %w", pw.table, err)
}

func (pw *parquetWriter) Abort(context.Context) error {
	if pw.tmp == nil {
		return nil
	}
	name := pw.tmp.Name()
	_ = pw.tmp.Close()
	pw.tmp = nil
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the names of the persisted tables, sorted.
func (d *ParquetDir) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, parquetExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, parquetExt))
	}
	sort.Strings(names)
	return names, nil
}

type parquetCursor struct {
	f      *os.File
	cols   []schema.Column
	leaves []int
	groups []parquet.RowGroup
	group  int
	rows   parquet.Rows
	buf    []parquet.Row
	n, pos int
}

// Open opens a persisted table for reading.
func (d *ParquetDir) Open(_ context.Context, table string) (Cursor, error) {
	if !schema.ValidIdentifier(table) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, table)
	}
	f, err := os.Open(d.Path(table))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, table)
	}
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", table, err)
	}

	var cols []schema.Column
	if meta, ok := pf.Lookup(columnsMetaKey); ok {
		if err := json.Unmarshal([]byte(meta), &cols); err != nil {
			f.Close()
			return nil, fmt.Errorf("reading %s metadata: %w", table, err)
		}
	} else {
		f.Close()
		return nil, fmt.Errorf("%s: missing %s metadata", table, columnsMetaKey)
	}
	leaves, err := leafIndexes(pf.Schema(), cols)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &parquetCursor{
		f:      f,
		cols:   cols,
		leaves: leaves,
		groups: pf.RowGroups(),
		buf:    make([]parquet.Row, readChunk),
	}, nil
}

func (c *parquetCursor) Columns() []schema.Column { return c.cols }

func (c *parquetCursor) fill() error {
	for {
		if c.rows == nil {
			if c.group >= len(c.groups) {
				return io.EOF
			}
			c.rows = c.groups[c.group].Rows()
			c.group++
		}
		n, err := c.rows.ReadRows(c.buf)
		if n > 0 {
			c.n, c.pos = n, 0
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		_ = c.rows.Close()
		c.rows = nil
	}
}

func (c *parquetCursor) Next() (schema.Row, error) {
	if c.pos >= c.n {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	pr := c.buf[c.pos]
	c.pos++

	byLeaf := make(map[int]parquet.Value, len(pr))
	for _, v := range pr {
		byLeaf[v.Column()] = v
	}
	row := make(schema.Row, len(c.cols))
	for i, col := range c.cols {
		v := byLeaf[c.leaves[i]]
		switch col.Type {
		case schema.TypeInteger:
			row[i] = v.Int64()
		case schema.TypeString:
			row[i] = string(v.ByteArray())
		case schema.TypeFloat:
			row[i] = v.Double()
		case schema.TypeTimestamp:
			row[i] = time.UnixMilli(v.Int64()).UTC()
		}
	}
	return row, nil
}

func (c *parquetCursor) Close() error {
	if c.rows != nil {
		_ = c.rows.Close()
	}
	return c.f.Close()
}
