// Package cli implements the synthdata command line.
package cli

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JonMunkholm/synthdata/internal/config"
)

// app is the state shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	webFS  fs.FS
	// cfgOverrides are flag values applied on top of the loaded config.
	cfgOverrides struct {
		port string
	}
}

// NewRootCmd builds the command tree. webFS holds the static UI served by
// the serve command.
func NewRootCmd(webFS fs.FS) *cobra.Command {
	a := &app{webFS: webFS}
	root := &cobra.Command{
		Use:           "synthdata [command]",
		Short:         "Synthetic database generator and fraud classifier pipeline",
		Long:          `Generate referentially consistent synthetic databases from a table schema, and train, evaluate and query a fraud classifier over transaction data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr(), false)
			return nil
		},
	}

	root.AddCommand(
		newGenerateCmd(a),
		newOrderCmd(a),
		newImportCmd(a),
		newArchiveCmd(a),
		newServeCmd(a),
		newTriggerCmd(a),
		newPipelineCmd(a),
		newPredictCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, webFS fs.FS, args []string, stderr io.Writer) int {
	root := NewRootCmd(webFS)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.New(slog.NewTextHandler(stderr, nil)).Error("command failed", "error", err)
		return 1
	}
	return 0
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
