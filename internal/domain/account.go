package domain

import "github.com/shopspring/decimal"

// ============================================================
// Accounts
// ============================================================

// Account is the subset of an account row the reconciliation flow needs.
// ReconciledUntil/ReconciledBalance form the reconciliation checkpoint and
// are both nil until the user reconciles the account for the first time.
type Account struct {
	ID                string           `json:"id"`
	OwnerID           string           `json:"owner_id,omitempty"`
	Name              string           `json:"name"`
	Currency          string           `json:"currency,omitempty"`
	ReconciledUntil   *string          `json:"reconciled_until"`
	ReconciledBalance *decimal.Decimal `json:"reconciled_balance"`
}

// HasCheckpoint reports whether both checkpoint fields are set.
func (a *Account) HasCheckpoint() bool {
	return a.ReconciledUntil != nil && *a.ReconciledUntil != "" && a.ReconciledBalance != nil
}
