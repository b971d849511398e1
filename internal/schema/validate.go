package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidSchema wraps every validation failure.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrCycle is returned when foreign keys form a reference cycle.
	ErrCycle = errors.New("foreign keys form a cycle")
)

// pgTypes maps generated value types onto the PostgreSQL column types the
// Postgres sink creates.
var pgTypes = map[ValueType]string{
	TypeInteger:   "bigint",
	TypeString:    "text",
	TypeFloat:     "double precision",
	TypeTimestamp: "timestamp",
}

// PostgresType returns the column type used for t in CREATE TABLE.
func PostgresType(t ValueType) (string, error) {
	if s, ok := pgTypes[t]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unsupported column type %q", t)
}

// ValidIdentifier checks if a name is a valid SQL identifier.
// Exported for use in API handlers for path parameter validation.
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Validate checks a set of table specs for structural errors. All problems
// are collected so the UI can show them at once.
func Validate(tables []TableSpec) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(tables) == 0 {
		fail("no tables defined")
	}

	byName := make(map[string]TableSpec, len(tables))
	for _, t := range tables {
		if !ValidIdentifier(t.Name) {
			fail("table %q: name must be lowercase letters, numbers and underscores", t.Name)
			continue
		}
		if _, dup := byName[t.Name]; dup {
			fail("table %q: defined more than once", t.Name)
			continue
		}
		byName[t.Name] = t
	}

	for _, t := range tables {
		if t.RowCount <= 0 {
			fail("table %q: row count must be positive, got %d", t.Name, t.RowCount)
		}
		if t.PrimaryKey != "" && !ValidIdentifier(t.PrimaryKey) {
			fail("table %q: invalid primary key column %q", t.Name, t.PrimaryKey)
		}
		if t.KeyPattern != "" {
			if _, err := ParseKeyPattern(t.KeyPattern); err != nil {
				fail("table %q: %v", t.Name, err)
			}
		}
		cols := make(map[string]bool)
		for _, c := range t.Columns {
			if !ValidIdentifier(c.Name) {
				fail("table %q: invalid column name %q", t.Name, c.Name)
			}
			if cols[c.Name] {
				fail("table %q: column %q defined more than once", t.Name, c.Name)
			}
			cols[c.Name] = true
			if _, err := ParseKind(string(c.Kind)); err != nil {
				fail("table %q column %q: %v", t.Name, c.Name, err)
			}
			if err := checkBounds(c); err != nil {
				fail("table %q column %q: %v", t.Name, c.Name, err)
			}
		}
		for _, fk := range t.ForeignKeys {
			ref, ok := byName[fk.ReferencesTable]
			if !ok {
				fail("table %q: foreign key references unknown table %q", t.Name, fk.ReferencesTable)
				continue
			}
			if fk.ReferencesTable == t.Name {
				fail("table %q: foreign key references itself", t.Name)
				continue
			}
			if fk.ReferencesColumn != "" && fk.ReferencesColumn != ref.KeyColumn() {
				fail("table %q: foreign key must reference %s.%s, got %q",
					t.Name, ref.Name, ref.KeyColumn(), fk.ReferencesColumn)
			}
			if fk.Column != "" && !ValidIdentifier(fk.Column) {
				fail("table %q: invalid foreign key column %q", t.Name, fk.Column)
			}
		}
	}

	if len(errs) == 0 {
		if _, err := Order(tables); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...))
	}
	return nil
}

func checkBounds(c ColumnSpec) error {
	for _, v := range []*float64{c.Min, c.Max} {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.Abs(*v) > MaxBoundMagnitude {
			return fmt.Errorf("bound %v out of range", *v)
		}
	}
	if lo, hi := c.Bounds(); hi-lo > MaxBoundSpan {
		return fmt.Errorf("range %v..%v is too wide", lo, hi)
	}
	if c.DaysBack < 0 || c.DaysBack > MaxDaysBack {
		return fmt.Errorf("days_back must be between 0 and %d, got %d", MaxDaysBack, c.DaysBack)
	}
	return nil
}
