package domain

import "github.com/shopspring/decimal"

// ============================================================
// Reconciliation
// ============================================================

// ReconciliationSettings tune the scored matching pass.
type ReconciliationSettings struct {
	DateToleranceDays   int             `json:"date_tolerance_days"`
	AmountTolerance     decimal.Decimal `json:"amount_tolerance"`
	DescriptionMatching bool            `json:"description_matching"`
}

// DefaultReconciliationSettings returns 3 days, 1.00 and no description matching.
func DefaultReconciliationSettings() ReconciliationSettings {
	return ReconciliationSettings{
		DateToleranceDays:   3,
		AmountTolerance:     decimal.NewFromInt(1),
		DescriptionMatching: false,
	}
}

// SettingsOverride is a partial ReconciliationSettings as sent by clients.
// Nil fields keep the base value.
type SettingsOverride struct {
	DateToleranceDays   *int             `json:"date_tolerance_days,omitempty"`
	AmountTolerance     *decimal.Decimal `json:"amount_tolerance,omitempty"`
	DescriptionMatching *bool            `json:"description_matching,omitempty"`
}

// Apply returns base with every field set on o replaced.
func (o *SettingsOverride) Apply(base ReconciliationSettings) ReconciliationSettings {
	if o == nil {
		return base
	}
	if o.DateToleranceDays != nil {
		base.DateToleranceDays = *o.DateToleranceDays
	}
	if o.AmountTolerance != nil {
		base.AmountTolerance = *o.AmountTolerance
	}
	if o.DescriptionMatching != nil {
		base.DescriptionMatching = *o.DescriptionMatching
	}
	return base
}

// ReconciliationHint narrows the search for a manual transaction's counterpart.
type ReconciliationHint struct {
	DescriptionContains string           `json:"description_contains,omitempty"`
	AmountMin           *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax           *decimal.Decimal `json:"amount_max,omitempty"`
}

// ExactMatch is a manual/imported pair accepted by the exact pass.
type ExactMatch struct {
	Manual   Transaction `json:"manual"`
	Imported Transaction `json:"imported"`
	Score    int         `json:"score"`
	Exact    bool        `json:"exact"`
}

// AutoMatchResult is the outcome of the exact pass. Every input appears in
// exactly one of the three collections.
type AutoMatchResult struct {
	Matches           []ExactMatch  `json:"matches"`
	UnmatchedManuals  []Transaction `json:"unmatched_manuals"`
	UnmatchedImported []Transaction `json:"unmatched_imported"`
}

// MatchCandidate is an imported transaction scored against a manual one.
type MatchCandidate struct {
	Transaction Transaction `json:"transaction"`
	Score       int         `json:"score"`
	Reasons     string      `json:"reasons"`
	Penalties   []string    `json:"penalties,omitempty"`
}

// BalanceDiscrepancy reports a checkpoint that disagrees with the ledger.
type BalanceDiscrepancy struct {
	AccountID         string          `json:"account_id"`
	AccountName       string          `json:"account_name"`
	ReconciledUntil   string          `json:"reconciled_until"`
	ReconciledBalance decimal.Decimal `json:"reconciled_balance"`
	ComputedBalance   decimal.Decimal `json:"computed_balance"`
	Difference        decimal.Decimal `json:"difference"`
}
