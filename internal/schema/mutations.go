package schema

import (
	"fmt"
	"strings"
)

// BuildCreateTableDDL constructs a CREATE TABLE statement for a generated
// table. The first column is the primary key.
func BuildCreateTableDDL(tableName string, cols []Column) (string, error) {
	if !ValidIdentifier(tableName) {
		return "", fmt.Errorf("invalid table name: must be lowercase letters, numbers, underscores, and start with letter or underscore")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %q has no columns", tableName)
	}

	defs := make([]string, 0, len(cols))
	for i, c := range cols {
		if !ValidIdentifier(c.Name) {
			return "", fmt.Errorf("invalid column name %q", c.Name)
		}
		typ, err := PostgresType(c.Type)
		if err != nil {
			return "", err
		}
		def := QuoteIdentifier(c.Name) + " " + typ
		if i == 0 {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdentifier(tableName), strings.Join(defs, ", ")), nil
}

// BuildDropTableDDL constructs a DROP TABLE IF EXISTS statement.
func BuildDropTableDDL(tableName string) (string, error) {
	if !ValidIdentifier(tableName) {
		return "", fmt.Errorf("invalid table name")
	}
	return "DROP TABLE IF EXISTS " + QuoteIdentifier(tableName) + " CASCADE", nil
}

// BuildAddForeignKeyDDL constructs an ALTER TABLE ADD FOREIGN KEY statement.
// The Postgres sink adds constraints once every table of a run is loaded.
func BuildAddForeignKeyDDL(tableName string, fk ForeignKey) (string, error) {
	for _, id := range []string{tableName, fk.Column, fk.ReferencesTable, fk.ReferencesColumn} {
		if !ValidIdentifier(id) {
			return "", fmt.Errorf("invalid identifier %q in foreign key", id)
		}
	}
	name := fmt.Sprintf("fk_%s_%s", tableName, fk.Column)
	if len(name) > 63 {
		name = name[:63]
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		QuoteIdentifier(tableName),
		QuoteIdentifier(name),
		QuoteIdentifier(fk.Column),
		QuoteIdentifier(fk.ReferencesTable),
		QuoteIdentifier(fk.ReferencesColumn)), nil
}
