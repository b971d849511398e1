package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

func newOrderCmd(a *app) *cobra.Command {
	var (
		path string
		vars map[string]string
	)
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Validate a schema file and print the generation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = a.cfg.SchemaPath
			}
			tables, err := a.loadSchema(path, vars)
			if err != nil {
				return err
			}
			renderOrder(cmd.OutOrStdout(), tables)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "schema", "s", "", "Schema file (default SCHEMA_PATH)")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Schema variable as name=value")
	return cmd
}

func renderOrder(w io.Writer, tables []schema.TableSpec) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"#", "Table", "Rows", "Key", "References"})
	tbl.SetAutoFormatHeaders(false)
	for i, t := range tables {
		refs := make([]string, 0, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			refs = append(refs, fk.ReferencesTable+"."+fk.ReferencesColumn)
		}
		key := t.KeyColumn()
		if p, err := schema.ParseKeyPattern(t.KeyPattern); err == nil {
			key += " " + p.String()
		} else if p, ok := schema.DetectKeyPattern(t.Description); ok {
			key += " " + p.String()
		}
		tbl.Append([]string{strconv.Itoa(i + 1), t.Name, strconv.Itoa(t.RowCount), key, strings.Join(refs, ", ")})
	}
	tbl.Render()
}
