package schema

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// DefaultKeyColumn is the primary key column name when none is given.
// Every generated table has a key column so any table can be referenced.
const DefaultKeyColumn = "id"

// KeyColumn returns the primary key column name.
func (t TableSpec) KeyColumn() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return DefaultKeyColumn
}

// ForeignKeyColumn returns the referencing column name for fk. An explicit
// Column wins. Otherwise the referenced column name is reused unless it is
// generic or already taken, in which case it is qualified with the singular
// referenced table name (customers.id -> customer_id).
func (t TableSpec) ForeignKeyColumn(fk ForeignKey, taken map[string]bool) string {
	if fk.Column != "" {
		return fk.Column
	}
	name := fk.ReferencesColumn
	if name == "" || name == DefaultKeyColumn || taken[name] {
		name = strings.ToLower(inflect.Singularize(fk.ReferencesTable)) + "_" + fk.ReferencesColumn
	}
	return name
}

// BoundForeignKey is a foreign key together with its column position.
type BoundForeignKey struct {
	ForeignKey
	Index int
}

// Layout is the resolved physical shape of a table: the primary key column,
// one column per foreign key, then the value columns.
type Layout struct {
	Columns     []Column
	ForeignKeys []BoundForeignKey
	Values      []ColumnSpec
	// ValueIndex[i] is the column position of Values[i].
	ValueIndex []int
}

// Resolve computes the table's column layout. Value columns that repeat the
// primary key or a foreign key column are dropped. When the table has no
// columns they are inferred from the description.
func (t TableSpec) Resolve(keyType ValueType) Layout {
	var l Layout
	taken := map[string]bool{t.KeyColumn(): true}
	l.Columns = append(l.Columns, Column{Name: t.KeyColumn(), Type: keyType})

	for _, fk := range t.ForeignKeys {
		name := t.ForeignKeyColumn(fk, taken)
		taken[name] = true
		bound := fk
		bound.Column = name
		l.ForeignKeys = append(l.ForeignKeys, BoundForeignKey{ForeignKey: bound, Index: len(l.Columns)})
		// The type is fixed up by the engine once the referenced pool is known.
		l.Columns = append(l.Columns, Column{Name: name, Type: TypeInteger})
	}

	values := t.Columns
	if len(values) == 0 {
		values = InferColumns(t.Name, t.Description)
	}
	for _, c := range values {
		if taken[c.Name] {
			continue
		}
		taken[c.Name] = true
		l.ValueIndex = append(l.ValueIndex, len(l.Columns))
		l.Values = append(l.Values, c)
		l.Columns = append(l.Columns, Column{Name: c.Name, Type: c.Kind.ValueType()})
	}
	return l
}

// Normalize fills in foreign key referenced columns left empty with the
// referenced table's primary key column. The input is not modified.
func Normalize(tables []TableSpec) []TableSpec {
	keys := make(map[string]string, len(tables))
	for _, t := range tables {
		keys[t.Name] = t.KeyColumn()
	}
	out := make([]TableSpec, len(tables))
	for i, t := range tables {
		fks := make([]ForeignKey, len(t.ForeignKeys))
		for j, fk := range t.ForeignKeys {
			if fk.ReferencesColumn == "" {
				if k, ok := keys[fk.ReferencesTable]; ok {
					fk.ReferencesColumn = k
				} else {
					fk.ReferencesColumn = DefaultKeyColumn
				}
			}
			fks[j] = fk
		}
		t.ForeignKeys = fks
		out[i] = t
	}
	return out
}
