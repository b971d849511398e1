package schema

// ValueType is the physical type of a generated column.
type ValueType string

const (
	TypeInteger   ValueType = "integer"
	TypeString    ValueType = "string"
	TypeFloat     ValueType = "float"
	TypeTimestamp ValueType = "timestamp"
)

// Column is one column of a generated table.
type Column struct {
	Name string    `json:"name"`
	Type ValueType `json:"type"`
}

// Row holds one value per column, aligned with the table's column list.
// Values are int64, string, float64 or time.Time.
type Row []any

// ForeignKey references the primary key column of another table.
type ForeignKey struct {
	// Column is the name of the referencing column. When empty it is derived
	// from the referenced table and column, see TableSpec.ForeignKeyColumn.
	Column           string `json:"column,omitempty"`
	ReferencesTable  string `json:"referencesTable"`
	ReferencesColumn string `json:"referencesColumn"`
}

// ColumnSpec describes a non-key column and the kind of content to fill it with.
type ColumnSpec struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	DaysBack int      `json:"daysBack,omitempty"`
}

// TableSpec is the user-facing definition of one table to generate.
type TableSpec struct {
	Name        string       `json:"name"`
	RowCount    int          `json:"rows"`
	Description string       `json:"description"`
	PrimaryKey  string       `json:"primaryKey,omitempty"`
	KeyPattern  string       `json:"keyPattern,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
	Columns     []ColumnSpec `json:"columns,omitempty"`
}

// Schema is an ordered set of table specs.
type Schema struct {
	Tables []TableSpec `json:"tables"`
}

// Lookup returns the table spec with the given name.
func (s *Schema) Lookup(name string) (TableSpec, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}
