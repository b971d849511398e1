package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const retailHCL = `
table "customers" {
  rows        = 1000
  description = "Customers, ids like CUST-0001"
  primary_key = "customer_id"

  column "email" {
    kind = "email"
  }
}

table "sales" {
  rows        = var.sales_rows
  description = "Sales facts"

  column "price" {
    kind = "price"
    min  = 1.5
    max  = 99
  }
  column "sold_at" {
    kind      = "timestamp"
    days_back = 30
  }

  foreign_key {
    table = "customers"
    as    = "buyer_id"
  }
}
`

func TestParseHCL(t *testing.T) {
	s, err := ParseHCL([]byte(retailHCL), "retail.hcl", map[string]cty.Value{
		"sales_rows": cty.NumberIntVal(250000),
	})
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	customers, ok := s.Lookup("customers")
	require.True(t, ok)
	assert.Equal(t, 1000, customers.RowCount)
	assert.Equal(t, "customer_id", customers.PrimaryKey)
	assert.Equal(t, []ColumnSpec{{Name: "email", Kind: KindEmail}}, customers.Columns)

	sales, ok := s.Lookup("sales")
	require.True(t, ok)
	assert.Equal(t, 250000, sales.RowCount)
	require.Len(t, sales.Columns, 2)
	assert.Equal(t, 1.5, *sales.Columns[0].Min)
	assert.Equal(t, 99.0, *sales.Columns[0].Max)
	assert.Equal(t, 30, sales.Columns[1].DaysBack)
	assert.Equal(t, []ForeignKey{{Column: "buyer_id", ReferencesTable: "customers", ReferencesColumn: "customer_id"}}, sales.ForeignKeys)

	require.NoError(t, Validate(s.Tables))
}

func TestParseHCL_Errors(t *testing.T) {
	_, err := ParseHCL([]byte(`table "a" {`), "bad.hcl", nil)
	assert.Error(t, err)

	_, err = ParseHCL([]byte(`table "a" { rows = var.missing }`), "vars.hcl", nil)
	assert.Error(t, err)

	_, err = ParseHCL([]byte(`table "a" {
  rows = 1
  column "x" {
    kind = "colour"
  }
}`), "kind.hcl", nil)
	assert.ErrorContains(t, err, "unknown column kind")
}

func TestMarshalHCL_RoundTrip(t *testing.T) {
	orig, err := ParseHCL([]byte(retailHCL), "retail.hcl", map[string]cty.Value{
		"sales_rows": cty.NumberIntVal(42),
	})
	require.NoError(t, err)

	out := MarshalHCL(orig)
	assert.Contains(t, string(out), `table "customers" {`)

	path := filepath.Join(t.TempDir(), "schema.hcl")
	require.NoError(t, os.WriteFile(path, out, 0o600))
	again, err := LoadHCLFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, orig, again)
}

func TestVars(t *testing.T) {
	assert.Nil(t, Vars(nil))
	s, err := ParseHCL([]byte(`table "a" {
  rows        = 1
  description = var.desc
}`), "v.hcl", Vars(map[string]string{"desc": "ids like A-001"}))
	require.NoError(t, err)
	assert.Equal(t, "ids like A-001", s.Tables[0].Description)
}
