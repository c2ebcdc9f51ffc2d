package domain

import "github.com/shopspring/decimal"

// ============================================================
// Parsed bank statements (OFX)
// ============================================================

// ParsedStatement is the normalized content of one statement file.
type ParsedStatement struct {
	BankID        string              `json:"bank_id"`
	BankName      string              `json:"bank_name"`
	AccountID     string              `json:"account_id"`
	Currency      string              `json:"currency"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	LedgerBalance *decimal.Decimal    `json:"ledger_balance"`
	Transactions  []ParsedTransaction `json:"transactions"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// ParsedTransaction is a single STMTTRN entry.
type ParsedTransaction struct {
	ExternalID string          `json:"external_id"`
	Type       string          `json:"type"` // DEBIT, CREDIT, ...
	PostedAt   string          `json:"posted_at"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	Hash       string          `json:"hash"`
}

// ToTransaction converts a statement entry into a ledger transaction for
// the given account.
func (p ParsedTransaction) ToTransaction(accountID string) Transaction {
	return Transaction{
		AccountID:           accountID,
		Amount:              p.Amount,
		PostedAt:            p.PostedAt,
		Description:         p.Memo,
		OriginalDescription: p.Memo,
		Memo:                p.Memo,
		Source:              SourceOFX,
		ExternalID:          p.ExternalID,
	}
}
