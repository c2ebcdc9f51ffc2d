package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewReconcileCmd groups the reconciliation commands.
func NewReconcileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match manual transactions against imported ones",
	}
	cmd.AddCommand(NewReconcileMatchCmd(a))
	return cmd
}

type matchFlags struct {
	ManualFile          string
	ImportedFile        string
	Rank                string
	DateTolerance       int
	AmountTolerance     string
	DescriptionMatching bool
	AllowCrossAccount   bool
	JSON                bool
}

type matchRunner struct {
	app   *app
	flags *matchFlags
}

type matchOutput struct {
	domain.AutoMatchResult
	Candidates []domain.MatchCandidate `json:"candidates,omitempty"`
}

// NewReconcileMatchCmd runs the exact pass and optionally ranks candidates
// for one manual transaction.
func NewReconcileMatchCmd(a *app) *cobra.Command {
	flags := &matchFlags{}
	defaults := domain.DefaultReconciliationSettings()

	cmd := &cobra.Command{
		Use:   "match --manual MANUAL.json --imported IMPORTED.json",
		Short: "Pair manual and imported transactions",
		Long: `Pair manual and imported transactions with identical amount and date.
With --rank, the imported transactions left over are scored as candidates
for the given manual transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := &matchRunner{app: a, flags: flags}
			return runner.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&flags.ManualFile, "manual", "m", "", "JSON file with manual transactions")
	cmd.Flags().StringVarP(&flags.ImportedFile, "imported", "i", "", "JSON file with imported transactions")
	cmd.Flags().StringVar(&flags.Rank, "rank", "", "rank candidates for the manual transaction with this id")
	cmd.Flags().IntVar(&flags.DateTolerance, "date-tolerance", defaults.DateToleranceDays, "days of date tolerance when ranking")
	cmd.Flags().StringVar(&flags.AmountTolerance, "amount-tolerance", defaults.AmountTolerance.StringFixed(2), "amount tolerance when ranking")
	cmd.Flags().BoolVar(&flags.DescriptionMatching, "description-matching", defaults.DescriptionMatching, "score similar descriptions when ranking")
	cmd.Flags().BoolVar(&flags.AllowCrossAccount, "allow-cross-account", false, "rank candidates from other accounts with a penalty")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("manual")
	_ = cmd.MarkFlagRequired("imported")

	return cmd
}

func (r *matchRunner) Run(cmd *cobra.Command) error {
	var manuals, imported []domain.Transaction
	if err := readJSONFile(r.flags.ManualFile, &manuals); err != nil {
		return err
	}
	if err := readJSONFile(r.flags.ImportedFile, &imported); err != nil {
		return err
	}

	res := reconcile.AutoMatchExact(manuals, imported)
	r.app.logger.Debug("exact pass done",
		zap.Int("manuals", len(manuals)),
		zap.Int("imported", len(imported)),
		zap.Int("matches", len(res.Matches)),
	)

	output := matchOutput{AutoMatchResult: res}
	var ranked *domain.Transaction
	if r.flags.Rank != "" {
		for i := range manuals {
			if manuals[i].ID == r.flags.Rank {
				ranked = &manuals[i]
				break
			}
		}
		if ranked == nil {
			return fmt.Errorf("manual transaction %q not found", r.flags.Rank)
		}
		settings, err := r.settings()
		if err != nil {
			return err
		}
		output.Candidates = reconcile.RankCandidates(*ranked, res.UnmatchedImported, &settings, r.flags.AllowCrossAccount)
	}

	out := cmd.OutOrStdout()
	if r.flags.JSON {
		return writeJSON(out, output)
	}

	matched := pterm.TableData{{"Manual", "Imported", "Date", "Amount", "Score"}}
	for _, m := range res.Matches {
		matched = append(matched, []string{
			m.Manual.ID, m.Imported.ID, m.Manual.PostedDate(), colorAmount(m.Manual), strconv.Itoa(m.Score),
		})
	}
	if err := renderTable(out, "Exact matches", matched); err != nil {
		return err
	}

	unmatched := pterm.TableData{{"Side", "ID", "Date", "Amount", "Description"}}
	for _, tx := range res.UnmatchedManuals {
		unmatched = append(unmatched, []string{"manual", tx.ID, tx.PostedDate(), colorAmount(tx), orDash(tx.Description)})
	}
	for _, tx := range res.UnmatchedImported {
		unmatched = append(unmatched, []string{"imported", tx.ID, tx.PostedDate(), colorAmount(tx), orDash(tx.BankText())})
	}
	if len(unmatched) > 1 {
		if err := renderTable(out, "Unmatched", unmatched); err != nil {
			return err
		}
	}

	if ranked != nil {
		candidates := pterm.TableData{{"Imported", "Date", "Amount", "Score", "Reasons"}}
		for _, c := range output.Candidates {
			reasons := c.Reasons
			if len(c.Penalties) > 0 {
				reasons += pterm.Yellow(" [" + strings.Join(c.Penalties, ", ") + "]")
			}
			candidates = append(candidates, []string{
				c.Transaction.ID, c.Transaction.PostedDate(), colorAmount(c.Transaction), strconv.Itoa(c.Score), reasons,
			})
		}
		if err := renderTable(out, "Candidates for "+ranked.ID, candidates); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, pterm.Info.Sprintf("Matched: %d  unmatched manual: %d  unmatched imported: %d",
		len(res.Matches), len(res.UnmatchedManuals), len(res.UnmatchedImported)))
	return nil
}

func (r *matchRunner) settings() (domain.ReconciliationSettings, error) {
	tolerance, err := decimal.NewFromString(r.flags.AmountTolerance)
	if err != nil {
		return domain.ReconciliationSettings{}, fmt.Errorf("invalid --amount-tolerance %q", r.flags.AmountTolerance)
	}
	if tolerance.IsNegative() || r.flags.DateTolerance < 0 {
		return domain.ReconciliationSettings{}, fmt.Errorf("tolerances must not be negative")
	}
	return domain.ReconciliationSettings{
		DateToleranceDays:   r.flags.DateTolerance,
		AmountTolerance:     tolerance,
		DescriptionMatching: r.flags.DescriptionMatching,
	}, nil
}
