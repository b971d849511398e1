package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the introspector needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Introspector imports table specs from an existing PostgreSQL schema so a
// real database can be used as the template for a synthetic one.
type Introspector struct {
	db           Querier
	schemaName   string
	queryTimeout time.Duration
	// DefaultRows is used when the planner has no row estimate for a table.
	DefaultRows int
}

// NewIntrospector creates a new schema introspector for the given schema
// (usually "public").
func NewIntrospector(db Querier, schemaName string, queryTimeout time.Duration) *Introspector {
	if schemaName == "" {
		schemaName = "public"
	}
	return &Introspector{db: db, schemaName: schemaName, queryTimeout: queryTimeout, DefaultRows: 1000}
}

// withTimeout returns a context with the query timeout applied.
// If the parent context already has a shorter deadline, that deadline is preserved.
func (i *Introspector) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) <= i.queryTimeout {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, i.queryTimeout)
}

type importedColumn struct {
	name      string
	dataType  string
	isPrimary bool
}

// Import reads tables, columns, primary keys and foreign keys and returns
// them as table specs in dependency order. Composite primary keys are not
// supported; such tables keep their first key column.
func (i *Introspector) Import(ctx context.Context) (*Schema, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	rowsByTable, err := i.tableEstimates(ctx)
	if err != nil {
		return nil, err
	}
	if len(rowsByTable) == 0 {
		return &Schema{}, nil
	}
	columnsByTable, err := i.columns(ctx)
	if err != nil {
		return nil, err
	}
	fksByTable, err := i.foreignKeys(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]TableSpec, 0, len(rowsByTable))
	for name, estimate := range rowsByTable {
		spec := TableSpec{Name: name, RowCount: estimate}
		if spec.RowCount <= 0 {
			spec.RowCount = i.DefaultRows
		}
		spec.ForeignKeys = fksByTable[name]
		fkCols := make(map[string]bool, len(spec.ForeignKeys))
		for _, fk := range spec.ForeignKeys {
			fkCols[fk.Column] = true
		}
		for _, c := range columnsByTable[name] {
			switch {
			case c.isPrimary && spec.PrimaryKey == "":
				spec.PrimaryKey = c.name
			case c.isPrimary, fkCols[c.name]:
			default:
				spec.Columns = append(spec.Columns, ColumnSpec{Name: c.name, Kind: GuessKind(c.name, c.dataType)})
			}
		}
		tables = append(tables, spec)
	}

	ordered, err := Order(tables)
	if err != nil {
		return nil, err
	}
	return &Schema{Tables: ordered}, nil
}

func (i *Introspector) tableEstimates(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT c.relname, GREATEST(c.reltuples, 0)::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind = 'r'
		ORDER BY c.relname
	`
	rows, err := i.db.Query(ctx, query, i.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name     string
			estimate int64
		)
		if err := rows.Scan(&name, &estimate); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		out[name] = int(estimate)
	}
	return out, rows.Err()
}

func (i *Introspector) columns(ctx context.Context) (map[string][]importedColumn, error) {
	query := `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			COALESCE(pk.is_pk, false) AS is_primary
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT DISTINCT kcu.table_name, kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name
			 AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = $1
		) pk ON c.table_name = pk.table_name AND c.column_name = pk.column_name
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position
	`
	rows, err := i.db.Query(ctx, query, i.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]importedColumn)
	for rows.Next() {
		var (
			table string
			col   importedColumn
		)
		if err := rows.Scan(&table, &col.name, &col.dataType, &col.isPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		out[table] = append(out[table], col)
	}
	return out, rows.Err()
}

func (i *Introspector) foreignKeys(ctx context.Context) (map[string][]ForeignKey, error) {
	query := `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS references_table,
			ccu.column_name AS references_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name
		 AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.column_name
	`
	rows, err := i.db.Query(ctx, query, i.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ForeignKey)
	for rows.Next() {
		var (
			table string
			fk    ForeignKey
		)
		if err := rows.Scan(&table, &fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		// Self references cannot be generated from a finished pool.
		if fk.ReferencesTable == table {
			continue
		}
		out[table] = append(out[table], fk)
	}
	return out, rows.Err()
}

// GuessKind picks a content kind for an existing column from its name and
// PostgreSQL data type.
func GuessKind(name, dataType string) Kind {
	n := strings.ToLower(name)
	for _, kw := range keywordKinds {
		w := strings.ReplaceAll(kw.word, " ", "_")
		if n == w || strings.HasSuffix(n, "_"+w) || strings.HasPrefix(n, w+"_") {
			if kw.kind.ValueType() == valueTypeOf(dataType) {
				return kw.kind
			}
		}
	}
	switch valueTypeOf(dataType) {
	case TypeInteger:
		return KindInteger
	case TypeFloat:
		return KindFloat
	case TypeTimestamp:
		return KindTimestamp
	default:
		return KindWord
	}
}

func valueTypeOf(dataType string) ValueType {
	switch dataType {
	case "smallint", "integer", "bigint":
		return TypeInteger
	case "numeric", "real", "double precision", "money":
		return TypeFloat
	case "date", "timestamp without time zone", "timestamp with time zone":
		return TypeTimestamp
	default:
		return TypeString
	}
}
