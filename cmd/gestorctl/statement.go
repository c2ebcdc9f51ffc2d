package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStatementCmd groups the statement file commands.
func NewStatementCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Inspect bank statement files",
	}
	cmd.AddCommand(NewStatementParseCmd(a))
	return cmd
}

type parseFlags struct {
	JSON bool
}

type parseRunner struct {
	app   *app
	flags *parseFlags
}

// NewStatementParseCmd prints the normalized content of an OFX file.
func NewStatementParseCmd(a *app) *cobra.Command {
	flags := &parseFlags{}

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse an OFX statement",
		Long: `Parse an OFX 1.x (SGML) or 2.x (XML) statement and print its header
and transactions, with the dedup hash computed for every entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &parseRunner{app: a, flags: flags}
			return runner.Run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the parsed statement as JSON")

	return cmd
}

func (r *parseRunner) Run(cmd *cobra.Command, path string) error {
	stmt, err := readStatement(path)
	if err != nil {
		return err
	}
	for _, w := range stmt.Warnings {
		r.app.logger.Warn("statement warning", zap.String("file", path), zap.String("warning", w))
	}

	out := cmd.OutOrStdout()
	if r.flags.JSON {
		return writeJSON(out, stmt)
	}

	balance := "-"
	if stmt.LedgerBalance != nil {
		balance = stmt.LedgerBalance.StringFixed(2)
	}
	fmt.Fprintf(out, "%s %s (%s)  account %s  %s..%s  balance %s %s\n",
		orDash(stmt.BankName), orDash(stmt.BankID), stmt.Currency, orDash(stmt.AccountID),
		orDash(stmt.StartDate), orDash(stmt.EndDate), balance, stmt.Currency)

	data := pterm.TableData{{"Date", "Type", "Amount", "Memo", "FITID", "Hash"}}
	for _, p := range stmt.Transactions {
		tx := p.ToTransaction("")
		data = append(data, []string{p.PostedAt, p.Type, colorAmount(tx), p.Memo, orDash(p.ExternalID), shortHash(p.Hash)})
	}
	if err := renderTable(out, "Transactions", data); err != nil {
		return err
	}

	fmt.Fprintln(out, pterm.Info.Sprintf("Total: %d transactions", len(stmt.Transactions)))
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
