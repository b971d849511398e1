// Package archive bundles persisted tables into a zip of CSV files.
package archive

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/synthdata/internal/store"
)

// FileName is the name of the archive produced by Builder.
const FileName = "generated_database.zip"

// TimeLayout is how timestamps are written to CSV.
const TimeLayout = "2006-01-02 15:04:05"

// ErrEmpty is returned when there are no tables to archive.
var ErrEmpty = errors.New("no tables to archive")

// Write streams every table of r into w as <table>.csv entries.
func Write(ctx context.Context, w io.Writer, r store.Reader) ([]string, error) {
	tables, err := r.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, ErrEmpty
	}

	zw := zip.NewWriter(w)
	for _, name := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name + ".csv",
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if err := writeCSV(ctx, f, r, name); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return tables, nil
}

func writeCSV(ctx context.Context, w io.Writer, r store.Reader, table string) error {
	cur, err := r.Open(ctx, table)
	if err != nil {
		return err
	}
	defer cur.Close()

	cols := cur.Columns()
	cw := csv.NewWriter(w)
	record := make([]string, len(cols))
	for i, c := range cols {
		record[i] = c.Name
	}
	if err := cw.Write(record); err != nil {
		return err
	}
	for {
		row, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders one generated value as CSV text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(TimeLayout)
	default:
		return fmt.Sprint(x)
	}
}

// Builder writes the archive to a fixed path. Concurrent Build calls share a
// single build.
type Builder struct {
	reader store.Reader
	dir    string
	logger *slog.Logger
	group  singleflight.Group
}

// NewBuilder returns a builder that reads tables from r and writes the
// archive into dir.
func NewBuilder(r store.Reader, dir string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{reader: r, dir: dir, logger: logger}
}

// Path returns where the archive is written.
func (b *Builder) Path() string {
	return filepath.Join(b.dir, FileName)
}

// Result describes a finished archive.
type Result struct {
	Path   string   `json:"path"`
	Tables []string `json:"tables"`
	Size   int64    `json:"size"`
}

// Build (re)creates the archive. The previous archive is replaced only when
// the new one is complete.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	v, err, shared := b.group.Do("build", func() (any, error) {
		return b.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.logger.Debug("archive build shared")
	}
	return v.(*Result), nil
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(b.dir, ".archive-*.tmp")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	tables, err := Write(ctx, tmp, b.reader)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	st, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), b.Path()); err != nil {
		return nil, err
	}
	b.logger.Info("archive built", "path", b.Path(), "tables", len(tables), "bytes", st.Size())
	return &Result{Path: b.Path(), Tables: tables, Size: st.Size()}, nil
}

// Ready reports whether an archive exists.
func (b *Builder) Ready() bool {
	_, err := os.Stat(b.Path())
	return err == nil
}
