// Command gestorctl runs the statement engine offline: parse OFX files,
// try categorization rules and reconcile exported transactions without a
// ledger backend.
package main

import (
	"os"
	"unicode"

	"github.com/felipemotter/gestor-sub001/internal/infra/observability"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand shares.
type app struct {
	verbose bool
	logger  *zap.Logger
}

func main() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	if err := NewRootCmd().Execute(); err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:           "gestorctl",
		Short:         "Offline tools for bank statement import and reconciliation",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = observability.NewCLILogger(a.verbose)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(NewStatementCmd(a))
	rootCmd.AddCommand(NewRulesCmd(a))
	rootCmd.AddCommand(NewReconcileCmd(a))

	return rootCmd
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
