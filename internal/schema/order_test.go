package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(tables []TableSpec) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func fk(table string) ForeignKey {
	return ForeignKey{ReferencesTable: table, ReferencesColumn: "id"}
}

func TestOrder_DimensionsFirst(t *testing.T) {
	tables := []TableSpec{
		{Name: "sales", RowCount: 250000, ForeignKeys: []ForeignKey{fk("customers"), fk("products")}},
		{Name: "customers", RowCount: 1000},
		{Name: "products", RowCount: 50},
	}
	got, err := Order(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"products", "customers", "sales"}, names(got))
}

func TestOrder_TieBreakByName(t *testing.T) {
	tables := []TableSpec{
		{Name: "b", RowCount: 10},
		{Name: "a", RowCount: 10},
		{Name: "c", RowCount: 5, ForeignKeys: []ForeignKey{fk("b")}},
	}
	got, err := Order(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(got))
}

func TestOrder_ChainOverridesRowCount(t *testing.T) {
	tables := []TableSpec{
		{Name: "line_items", RowCount: 1, ForeignKeys: []ForeignKey{fk("orders")}},
		{Name: "orders", RowCount: 10, ForeignKeys: []ForeignKey{fk("customers"), fk("customers")}},
		{Name: "customers", RowCount: 100},
	}
	got, err := Order(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders", "line_items"}, names(got))
}

func TestOrder_Cycle(t *testing.T) {
	tables := []TableSpec{
		{Name: "a", RowCount: 1, ForeignKeys: []ForeignKey{fk("b")}},
		{Name: "b", RowCount: 1, ForeignKeys: []ForeignKey{fk("a")}},
		{Name: "c", RowCount: 1},
	}
	_, err := Order(tables)
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "a, b")
}
