package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyColumn(t *testing.T) {
	orders := TableSpec{Name: "orders"}
	assert.Equal(t, "customer_id", orders.ForeignKeyColumn(ForeignKey{ReferencesTable: "customers", ReferencesColumn: "id"}, nil))
	assert.Equal(t, "store_code", orders.ForeignKeyColumn(ForeignKey{ReferencesTable: "stores", ReferencesColumn: "store_code"}, nil))
	assert.Equal(t, "buyer", orders.ForeignKeyColumn(ForeignKey{Column: "buyer", ReferencesTable: "customers", ReferencesColumn: "id"}, nil))

	taken := map[string]bool{"code": true}
	assert.Equal(t, "store_code", orders.ForeignKeyColumn(ForeignKey{ReferencesTable: "stores", ReferencesColumn: "code"}, taken))
}

func TestResolve(t *testing.T) {
	spec := TableSpec{
		Name:        "sales",
		PrimaryKey:  "sale_id",
		ForeignKeys: []ForeignKey{{ReferencesTable: "customers", ReferencesColumn: "id"}},
		Columns: []ColumnSpec{
			{Name: "sale_id", Kind: KindInteger},
			{Name: "customer_id", Kind: KindInteger},
			{Name: "price", Kind: KindPrice},
			{Name: "sold_at", Kind: KindTimestamp},
		},
	}
	l := spec.Resolve(TypeString)
	assert.Equal(t, []Column{
		{Name: "sale_id", Type: TypeString},
		{Name: "customer_id", Type: TypeInteger},
		{Name: "price", Type: TypeFloat},
		{Name: "sold_at", Type: TypeTimestamp},
	}, l.Columns)
	assert.Equal(t, []int{2, 3}, l.ValueIndex)
	assert.Len(t, l.ForeignKeys, 1)
	assert.Equal(t, 1, l.ForeignKeys[0].Index)
	assert.Equal(t, "customer_id", l.ForeignKeys[0].Column)
}

func TestInferColumns(t *testing.T) {
	cols := InferColumns("customers", "Customers with first name, last name, email and signup date")
	var got []string
	for _, c := range cols {
		got = append(got, c.Name)
	}
	assert.Equal(t, []string{"first_name", "last_name", "email", "event_date"}, got)

	fallback := InferColumns("widgets", "")
	assert.Equal(t, []ColumnSpec{
		{Name: "widget_name", Kind: KindName},
		{Name: "created_at", Kind: KindTimestamp},
	}, fallback)

	prices := InferColumns("products", "Products with a name and a price")
	assert.Equal(t, []ColumnSpec{
		{Name: "product_name", Kind: KindName},
		{Name: "price", Kind: KindPrice},
	}, prices)
}

func TestNormalize(t *testing.T) {
	in := []TableSpec{
		{Name: "stores", RowCount: 1, PrimaryKey: "store_code"},
		{Name: "sales", RowCount: 1, ForeignKeys: []ForeignKey{{ReferencesTable: "stores"}}},
	}
	out := Normalize(in)
	assert.Equal(t, "store_code", out[1].ForeignKeys[0].ReferencesColumn)
	assert.Empty(t, in[1].ForeignKeys[0].ReferencesColumn)
}

func TestGuessKind(t *testing.T) {
	assert.Equal(t, KindEmail, GuessKind("email", "text"))
	assert.Equal(t, KindFirstName, GuessKind("first_name", "character varying"))
	assert.Equal(t, KindPrice, GuessKind("unit_price", "numeric"))
	assert.Equal(t, KindTimestamp, GuessKind("shipped_at", "timestamp with time zone"))
	assert.Equal(t, KindInteger, GuessKind("qty", "integer"))
	assert.Equal(t, KindWord, GuessKind("sku", "text"))
}

func TestResolve_DefaultKeyColumn(t *testing.T) {
	events := TableSpec{Name: "events", RowCount: 3, Columns: []ColumnSpec{{Name: "note", Kind: KindSentence}}}
	assert.Equal(t, DefaultKeyColumn, events.KeyColumn())
	l := events.Resolve(TypeInteger)
	require.NotEmpty(t, l.Columns)
	assert.Equal(t, Column{Name: "id", Type: TypeInteger}, l.Columns[0])
}
