// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/shopspring/decimal"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// BalanceLookup computes an account balance as of a date (inclusive).
// A nil balance with a nil error means the backend had nothing to report.
type BalanceLookup interface {
	AccountBalanceAt(ctx context.Context, accountID, date string) (*decimal.Decimal, error)
}

// RuleStore loads the authoritative categorization rules.
type RuleStore interface {
	// ListActiveRules returns active rules for the account ordered by
	// priority then creation time.
	ListActiveRules(ctx context.Context, accountID string) ([]domain.Rule, error)
}

// TransactionStore handles persisted ledger transactions.
type TransactionStore interface {
	ListByExternalIDs(ctx context.Context, accountID string, externalIDs []string) ([]domain.Transaction, error)
	ListInRange(ctx context.Context, accountID, from, to string) ([]domain.Transaction, error)
	InsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error)
	UpdateCategorization(ctx context.Context, c domain.Categorization) error
}

// ImportBatchStore records confirmed import submissions.
type ImportBatchStore interface {
	FindImportBatch(ctx context.Context, accountID, hash string) (*domain.ImportBatch, error)
	CreateImportBatch(ctx context.Context, batch *domain.ImportBatch) error
}

// AccountStore handles account data operations.
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListReconciledAccounts(ctx context.Context, ownerID string) ([]domain.Account, error)
}
