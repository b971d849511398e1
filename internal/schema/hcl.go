package schema

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

type (
	fileHCL struct {
		Tables []*tableHCL `hcl:"table,block"`
		Remain hcl.Body    `hcl:",remain"`
	}
	tableHCL struct {
		Name        string           `hcl:",label"`
		Rows        int              `hcl:"rows"`
		Description string           `hcl:"description,optional"`
		PrimaryKey  string           `hcl:"primary_key,optional"`
		KeyPattern  string           `hcl:"key_pattern,optional"`
		Columns     []*columnHCL     `hcl:"column,block"`
		ForeignKeys []*foreignKeyHCL `hcl:"foreign_key,block"`
	}
	columnHCL struct {
		Name     string   `hcl:",label"`
		Kind     string   `hcl:"kind"`
		Min      *float64 `hcl:"min,optional"`
		Max      *float64 `hcl:"max,optional"`
		DaysBack int      `hcl:"days_back,optional"`
	}
	foreignKeyHCL struct {
		Table  string `hcl:"table"`
		Column string `hcl:"column,optional"`
		As     string `hcl:"as,optional"`
	}
)

// ParseHCL decodes a schema file. vars are exposed to expressions as
// var.<name>. The result is normalized but not validated.
func ParseHCL(body []byte, filename string, vars map[string]cty.Value) (*Schema, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(body, filename)
	if diags.HasErrors() {
		return nil, diags
	}
	if f == nil {
		return nil, fmt.Errorf("schema: file %q contents is nil", filename)
	}
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.EmptyObjectVal},
	}
	if len(vars) > 0 {
		ctx.Variables["var"] = cty.ObjectVal(vars)
	}
	var doc fileHCL
	if diags := gohcl.DecodeBody(f.Body, ctx, &doc); diags.HasErrors() {
		return nil, diags
	}

	s := &Schema{}
	for _, t := range doc.Tables {
		spec := TableSpec{
			Name:        t.Name,
			RowCount:    t.Rows,
			Description: t.Description,
			PrimaryKey:  t.PrimaryKey,
			KeyPattern:  t.KeyPattern,
		}
		for _, c := range t.Columns {
			kind, err := ParseKind(c.Kind)
			if err != nil {
				return nil, fmt.Errorf("schema: table %q column %q: %w", t.Name, c.Name, err)
			}
			spec.Columns = append(spec.Columns, ColumnSpec{
				Name:     c.Name,
				Kind:     kind,
				Min:      c.Min,
				Max:      c.Max,
				DaysBack: c.DaysBack,
			})
		}
		for _, fk := range t.ForeignKeys {
			spec.ForeignKeys = append(spec.ForeignKeys, ForeignKey{
				Column:           fk.As,
				ReferencesTable:  fk.Table,
				ReferencesColumn: fk.Column,
			})
		}
		s.Tables = append(s.Tables, spec)
	}
	s.Tables = Normalize(s.Tables)
	return s, nil
}

// LoadHCLFile reads and decodes a schema file from disk.
func LoadHCLFile(path string, vars map[string]cty.Value) (*Schema, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	return ParseHCL(body, path, vars)
}

// Vars converts plain string variables into cty values for ParseHCL.
func Vars(in map[string]string) map[string]cty.Value {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]cty.Value, len(in))
	for k, v := range in {
		out[k] = cty.StringVal(v)
	}
	return out
}

// MarshalHCL renders the schema in the same format ParseHCL reads.
func MarshalHCL(s *Schema) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	for i, t := range s.Tables {
		if i > 0 {
			root.AppendNewline()
		}
		body := root.AppendNewBlock("table", []string{t.Name}).Body()
		body.SetAttributeValue("rows", cty.NumberIntVal(int64(t.RowCount)))
		if t.Description != "" {
			body.SetAttributeValue("description", cty.StringVal(t.Description))
		}
		if t.PrimaryKey != "" {
			body.SetAttributeValue("primary_key", cty.StringVal(t.PrimaryKey))
		}
		if t.KeyPattern != "" {
			body.SetAttributeValue("key_pattern", cty.StringVal(t.KeyPattern))
		}
		for _, c := range t.Columns {
			cb := body.AppendNewBlock("column", []string{c.Name}).Body()
			cb.SetAttributeValue("kind", cty.StringVal(string(c.Kind)))
			if c.Min != nil {
				cb.SetAttributeValue("min", cty.NumberFloatVal(*c.Min))
			}
			if c.Max != nil {
				cb.SetAttributeValue("max", cty.NumberFloatVal(*c.Max))
			}
			if c.DaysBack > 0 {
				cb.SetAttributeValue("days_back", cty.NumberIntVal(int64(c.DaysBack)))
			}
		}
		for _, fk := range t.ForeignKeys {
			fb := body.AppendNewBlock("foreign_key", nil).Body()
			fb.SetAttributeValue("table", cty.StringVal(fk.ReferencesTable))
			if fk.ReferencesColumn != "" {
				fb.SetAttributeValue("column", cty.StringVal(fk.ReferencesColumn))
			}
			if fk.Column != "" {
				fb.SetAttributeValue("as", cty.StringVal(fk.Column))
			}
		}
	}
	return f.Bytes()
}

// TableNames returns the sorted table names of s.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
