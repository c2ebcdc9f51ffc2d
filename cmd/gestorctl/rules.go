package main

import (
	"fmt"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/rules"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRulesCmd groups the categorization rule commands.
func NewRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Try categorization rules against statements",
	}
	cmd.AddCommand(NewRulesApplyCmd(a))
	return cmd
}

type applyFlags struct {
	RulesFile string
	Workers   int
	JSON      bool
}

type applyRunner struct {
	app   *app
	flags *applyFlags
}

type appliedRow struct {
	Transaction domain.Transaction      `json:"transaction"`
	Rule        *domain.RuleMatchResult `json:"rule,omitempty"`
}

// NewRulesApplyCmd shows which rule would categorize each statement entry.
func NewRulesApplyCmd(a *app) *cobra.Command {
	flags := &applyFlags{}

	cmd := &cobra.Command{
		Use:   "apply --rules RULES.json FILE",
		Short: "Apply categorization rules to an OFX statement",
		Long: `Evaluate a JSON array of rules against every entry of an OFX statement.
Active rules are tried by priority, older rules first on ties; the first
match wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &applyRunner{app: a, flags: flags}
			return runner.Run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.RulesFile, "rules", "r", "", "JSON file with the rules to apply")
	cmd.Flags().IntVarP(&flags.Workers, "workers", "w", 1, "parallel workers for large statements")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func (r *applyRunner) Run(cmd *cobra.Command, path string) error {
	var ruleSet []domain.Rule
	if err := readJSONFile(r.flags.RulesFile, &ruleSet); err != nil {
		return err
	}

	stmt, err := readStatement(path)
	if err != nil {
		return err
	}

	txs := make([]domain.Transaction, len(stmt.Transactions))
	for i, p := range stmt.Transactions {
		txs[i] = p.ToTransaction(stmt.AccountID)
	}

	matcher := rules.NewMatcher(rules.WithWorkers(r.flags.Workers))
	matches := matcher.ApplyToBatch(ruleSet, txs)
	r.app.logger.Debug("rules applied",
		zap.Int("rules", len(ruleSet)),
		zap.Int("transactions", len(txs)),
		zap.Int("matched", len(matches)),
	)

	rows := make([]appliedRow, len(txs))
	for i, tx := range txs {
		rows[i] = appliedRow{Transaction: tx}
		if m, ok := matches[i]; ok {
			rows[i].Rule = &m
		}
	}

	out := cmd.OutOrStdout()
	if r.flags.JSON {
		return writeJSON(out, rows)
	}

	data := pterm.TableData{{"Date", "Amount", "Memo", "Rule", "Category"}}
	for _, row := range rows {
		ruleName, category := pterm.Gray("-"), pterm.Gray("-")
		if row.Rule != nil {
			ruleName, category = row.Rule.RuleName, row.Rule.CategoryID
		}
		data = append(data, []string{
			row.Transaction.PostedAt,
			colorAmount(row.Transaction),
			row.Transaction.Memo,
			ruleName,
			category,
		})
	}
	if err := renderTable(out, "Categorization", data); err != nil {
		return err
	}

	fmt.Fprintln(out, pterm.Info.Sprintf("Matched: %d of %d transactions", len(matches), len(txs)))
	return nil
}
