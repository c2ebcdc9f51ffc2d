// Package reconcile pairs manually entered transactions with imported ones
// and checks recorded balance checkpoints against the ledger.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/shopspring/decimal"
)

// Score values for the ranking pass.
const (
	ExactScore = 100
	MinScore   = 40

	crossAccountPenalty = 20
)

var (
	amountEpsilon = decimal.RequireFromString("0.01")
	dateLayout    = "2006-01-02"
)

// AutoMatchExact pairs each manual transaction with the first unused imported
// transaction that has the same posted day and the same absolute amount
// (within 0.01). Matching is greedy first-fit in input order and strictly
// one to one; leftovers keep their input order.
func AutoMatchExact(manuals, imported []domain.Transaction) domain.AutoMatchResult {
	result := domain.AutoMatchResult{
		Matches:           []domain.ExactMatch{},
		UnmatchedManuals:  []domain.Transaction{},
		UnmatchedImported: []domain.Transaction{},
	}
	used := make([]bool, len(imported))

	for _, m := range manuals {
		mDay, mOK := parseDay(m)
		matched := false
		if mOK {
			for j := range imported {
				if used[j] {
					continue
				}
				iDay, ok := parseDay(imported[j])
				if !ok || !iDay.Equal(mDay) || !sameAmount(m.Amount, imported[j].Amount) {
					continue
				}
				used[j] = true
				matched = true
				result.Matches = append(result.Matches, domain.ExactMatch{
					Manual:   m,
					Imported: imported[j],
					Score:    ExactScore,
					Exact:    true,
				})
				break
			}
		}
		if !matched {
			result.UnmatchedManuals = append(result.UnmatchedManuals, m)
		}
	}

	for j, imp := range imported {
		if !used[j] {
			result.UnmatchedImported = append(result.UnmatchedImported, imp)
		}
	}
	return result
}

// RankCandidates scores every imported transaction against manual and returns
// those scoring at least MinScore, best first. A nil settings uses
// domain.DefaultReconciliationSettings.
func RankCandidates(manual domain.Transaction, imported []domain.Transaction, settings *domain.ReconciliationSettings, allowCrossAccount bool) []domain.MatchCandidate {
	cfg := domain.DefaultReconciliationSettings()
	if settings != nil {
		cfg = *settings
	}

	candidates := []domain.MatchCandidate{}
	mDay, ok := parseDay(manual)
	if !ok {
		return candidates
	}
	manualAbs := manual.Amount.Abs()
	manualDesc := strings.ToLower(strings.TrimSpace(manual.Description))

	for _, imp := range imported {
		iDay, ok := parseDay(imp)
		if !ok {
			continue
		}

		days := daysBetween(mDay, iDay)
		if days > cfg.DateToleranceDays {
			continue
		}

		var (
			score     int
			reasons   []string
			penalties []string
		)

		switch days {
		case 0:
			score += 40
			reasons = append(reasons, "mesma data")
		case 1:
			score += 30
			reasons = append(reasons, "1 dia de diferença")
		case 2:
			score += 20
			reasons = append(reasons, "2 dias de diferença")
		default:
			score += 10
			reasons = append(reasons, fmt.Sprintf("%d dias de diferença", days))
		}

		impAbs := imp.Amount.Abs()
		diff := manualAbs.Sub(impAbs).Abs()
		switch {
		case diff.LessThanOrEqual(amountEpsilon):
			score += 40
			reasons = append(reasons, "mesmo valor")
		case diff.LessThanOrEqual(cfg.AmountTolerance):
			score += 25
			reasons = append(reasons, "valor aproximado")
		default:
			continue
		}

		if hint := manual.ReconciliationHint; hint != nil {
			if hint.DescriptionContains != "" && describes(imp, strings.ToLower(hint.DescriptionContains)) {
				score += 15
				reasons = append(reasons, "descrição da dica")
			}
			if inHintRange(hint, impAbs) {
				score += 10
				reasons = append(reasons, "faixa de valor da dica")
			}
		}

		if cfg.DescriptionMatching && len([]rune(manualDesc)) > 2 && describes(imp, manualDesc) {
			score += 10
			reasons = append(reasons, "descrição semelhante")
		}

		if manual.AccountID != "" && imp.AccountID != "" && manual.AccountID != imp.AccountID {
			if !allowCrossAccount {
				continue
			}
			score -= crossAccountPenalty
			penalties = append(penalties, "outra conta")
		}

		if score < MinScore {
			continue
		}

		candidates = append(candidates, domain.MatchCandidate{
			Transaction: imp,
			Score:       score,
			Reasons:     strings.Join(reasons, ", "),
			Penalties:   penalties,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func inHintRange(hint *domain.ReconciliationHint, abs decimal.Decimal) bool {
	if hint.AmountMin == nil && hint.AmountMax == nil {
		return false
	}
	if hint.AmountMin != nil && abs.LessThan(*hint.AmountMin) {
		return false
	}
	if hint.AmountMax != nil && abs.GreaterThan(*hint.AmountMax) {
		return false
	}
	return true
}

// describes reports whether the lowercased needle appears in the candidate's
// description or original description.
func describes(tx domain.Transaction, needle string) bool {
	return strings.Contains(strings.ToLower(tx.Description), needle) ||
		strings.Contains(strings.ToLower(tx.OriginalDescription), needle)
}

func sameAmount(a, b decimal.Decimal) bool {
	return a.Abs().Sub(b.Abs()).Abs().LessThanOrEqual(amountEpsilon)
}

// parseDay reads the YYYY-MM-DD part of the posted date.
func parseDay(tx domain.Transaction) (time.Time, bool) {
	raw := strings.TrimSpace(tx.PostedDate())
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func daysBetween(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
