package domain

import "github.com/shopspring/decimal"

// ============================================================
// Transactions
// ============================================================

// Transaction sources.
const (
	SourceManual   = "manual"
	SourceOFX      = "ofx"
	SourceTransfer = "transfer"
)

// Transaction is a ledger row as the matchers see it. Amount is signed:
// negative for debits, positive for credits.
type Transaction struct {
	ID                  string              `json:"id"`
	AccountID           string              `json:"account_id,omitempty"`
	Amount              decimal.Decimal     `json:"amount"`
	PostedAt            string              `json:"posted_at,omitempty"` // YYYY-MM-DD
	Date                string              `json:"date,omitempty"`      // legacy name for PostedAt
	Description         string              `json:"description,omitempty"`
	OriginalDescription string              `json:"original_description,omitempty"`
	Memo                string              `json:"memo,omitempty"`
	Source              string              `json:"source,omitempty"`
	ExternalID          string              `json:"external_id,omitempty"`
	CategoryID          string              `json:"category_id,omitempty"`
	ReconciliationHint  *ReconciliationHint `json:"reconciliation_hint,omitempty"`
}

// PostedDate returns the posted date under either field convention.
func (t *Transaction) PostedDate() string {
	if t.PostedAt != "" {
		return t.PostedAt
	}
	return t.Date
}

// BankText is the text the bank printed for the transaction: the original
// description, then the memo, then the user's description.
func (t *Transaction) BankText() string {
	switch {
	case t.OriginalDescription != "":
		return t.OriginalDescription
	case t.Memo != "":
		return t.Memo
	default:
		return t.Description
	}
}
