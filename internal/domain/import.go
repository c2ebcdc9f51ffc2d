package domain

import "time"

// ============================================================
// Statement import
// ============================================================

// ImportRow is one statement entry as shown in the import preview and as
// submitted back on confirmation.
type ImportRow struct {
	Transaction       Transaction      `json:"transaction"`
	Hash              string           `json:"hash,omitempty"`
	Rule              *RuleMatchResult `json:"rule,omitempty"`
	AlreadyImported   bool             `json:"already_imported"`
	PossibleDuplicate *Transaction     `json:"possible_duplicate,omitempty"`
}

// ImportPreview is returned by the upload endpoint.
type ImportPreview struct {
	Statement *ParsedStatement `json:"statement"`
	Rows      []ImportRow      `json:"rows"`
}

// ImportBatch records a confirmed submission for idempotency.
type ImportBatch struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Hash      string    `json:"hash"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportResult summarizes a confirmed import.
type ImportResult struct {
	BatchID     string `json:"batch_id"`
	Inserted    int    `json:"inserted"`
	Skipped     int    `json:"skipped"`
	Categorized int    `json:"categorized"`
}

// Categorization is the persisted outcome of a rule match.
type Categorization struct {
	TransactionID string `json:"transaction_id"`
	CategoryID    string `json:"category_id"`
	Description   string `json:"description,omitempty"`
}
