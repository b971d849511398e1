package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/synthdata/internal/archive"
	"github.com/JonMunkholm/synthdata/internal/store"
)

func newArchiveCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Package the generated tables as a zip of CSV files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = a.cfg.DataDir
			}
			b := archive.NewBuilder(store.NewParquetDir(dir, a.logger), dir, a.logger)
			res, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes): %s\n", res.Path, res.Size, strings.Join(res.Tables, ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory holding the Parquet tables (default DATA_DIR)")
	return cmd
}
