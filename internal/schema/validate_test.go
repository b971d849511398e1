package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("customers"))
	assert.True(t, ValidIdentifier("_tmp1"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("1abc"))
	assert.False(t, ValidIdentifier("Customers"))
	assert.False(t, ValidIdentifier("drop table;"))
	assert.False(t, ValidIdentifier(string(make([]byte, 64))))
}

func TestValidate(t *testing.T) {
	valid := []TableSpec{
		{Name: "customers", RowCount: 10, PrimaryKey: "customer_id", KeyPattern: "CUST-{4}"},
		{Name: "orders", RowCount: 100, ForeignKeys: []ForeignKey{{ReferencesTable: "customers", ReferencesColumn: "customer_id"}}},
	}
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		tables []TableSpec
		msg    string
	}{
		{"empty", nil, "no tables"},
		{"bad name", []TableSpec{{Name: "Bad Name", RowCount: 1}}, "name must be"},
		{"duplicate", []TableSpec{{Name: "a", RowCount: 1}, {Name: "a", RowCount: 2}}, "more than once"},
		{"zero rows", []TableSpec{{Name: "a"}}, "row count must be positive"},
		{"bad pattern", []TableSpec{{Name: "a", RowCount: 1, KeyPattern: "A-###"}}, "invalid key pattern"},
		{"bad kind", []TableSpec{{Name: "a", RowCount: 1, Columns: []ColumnSpec{{Name: "x", Kind: "colour"}}}}, "unknown column kind"},
		{"unknown reference", []TableSpec{{Name: "a", RowCount: 1, ForeignKeys: []ForeignKey{fk("b")}}}, "unknown table"},
		{"wrong column", []TableSpec{
			{Name: "a", RowCount: 1, PrimaryKey: "a_id"},
			{Name: "b", RowCount: 1, ForeignKeys: []ForeignKey{{ReferencesTable: "a", ReferencesColumn: "id"}}},
		}, "must reference a.a_id"},
		{"integer range too wide", []TableSpec{{Name: "a", RowCount: 1, Columns: []ColumnSpec{
			{Name: "n", Kind: KindInteger, Min: floatPtr(-3e18), Max: floatPtr(3e18)},
		}}}, "too wide"},
		{"bound out of range", []TableSpec{{Name: "a", RowCount: 1, Columns: []ColumnSpec{
			{Name: "n", Kind: KindFloat, Max: floatPtr(1e300)},
		}}}, "out of range"},
		{"days back too far", []TableSpec{{Name: "a", RowCount: 1, Columns: []ColumnSpec{
			{Name: "at", Kind: KindTimestamp, DaysBack: 200000},
		}}}, "days_back"},
		{"cycle", []TableSpec{
			{Name: "a", RowCount: 1, ForeignKeys: []ForeignKey{fk("b")}},
			{Name: "b", RowCount: 1, ForeignKeys: []ForeignKey{fk("a")}},
		}, "cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.tables)
			require.ErrorIs(t, err, ErrInvalidSchema)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBuildCreateTableDDL(t *testing.T) {
	ddl, err := BuildCreateTableDDL("orders", []Column{
		{Name: "order_id", Type: TypeString},
		{Name: "customer_id", Type: TypeInteger},
		{Name: "price", Type: TypeFloat},
		{Name: "created_at", Type: TypeTimestamp},
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "orders" ("order_id" text PRIMARY KEY, "customer_id" bigint, "price" double precision, "created_at" timestamp)`, ddl)

	_, err = BuildCreateTableDDL("orders; drop", []Column{{Name: "id", Type: TypeInteger}})
	assert.Error(t, err)
	_, err = BuildCreateTableDDL("orders", []Column{{Name: "id", Type: "blob"}})
	assert.Error(t, err)

	fkDDL, err := BuildAddForeignKeyDDL("orders", ForeignKey{Column: "customer_id", ReferencesTable: "customers", ReferencesColumn: "id"})
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "orders" ADD CONSTRAINT "fk_orders_customer_id" FOREIGN KEY ("customer_id") REFERENCES "customers"("id")`, fkDDL)
}

func floatPtr(v float64) *float64 { return &v }
