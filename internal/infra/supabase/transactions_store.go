package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Transactions (implements port.TransactionStore)
// ============================================================

const transactionColumns = "id,account_id,amount,posted_at,description,original_description,memo,source,external_id,category_id"

// transactionRow maps the transactions table.
type transactionRow struct {
	ID                  string          `json:"id"`
	AccountID           string          `json:"account_id"`
	Amount              decimal.Decimal `json:"amount"`
	PostedAt            string          `json:"posted_at"`
	Description         string          `json:"description"`
	OriginalDescription *string         `json:"original_description"`
	Memo                *string         `json:"memo"`
	Source              string          `json:"source"`
	ExternalID          *string         `json:"external_id"`
	CategoryID          *string         `json:"category_id"`
}

func toRow(tx domain.Transaction) transactionRow {
	return transactionRow{
		ID:                  tx.ID,
		AccountID:           tx.AccountID,
		Amount:              tx.Amount,
		PostedAt:            tx.PostedDate(),
		Description:         tx.Description,
		OriginalDescription: nullable(tx.OriginalDescription),
		Memo:                nullable(tx.Memo),
		Source:              tx.Source,
		ExternalID:          nullable(tx.ExternalID),
		CategoryID:          nullable(tx.CategoryID),
	}
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:                  r.ID,
		AccountID:           r.AccountID,
		Amount:              r.Amount,
		PostedAt:            r.PostedAt,
		Description:         r.Description,
		OriginalDescription: deref(r.OriginalDescription),
		Memo:                deref(r.Memo),
		Source:              r.Source,
		ExternalID:          deref(r.ExternalID),
		CategoryID:          deref(r.CategoryID),
	}
}

// ListByExternalIDs returns the account's transactions whose external id is
// one of externalIDs.
func (c *Client) ListByExternalIDs(ctx context.Context, accountID string, externalIDs []string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListByExternalIDs")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("external_ids", len(externalIDs)),
	)

	if len(externalIDs) == 0 {
		return []domain.Transaction{}, nil
	}

	path := fmt.Sprintf("transactions?select=%s&account_id=%s&external_id=%s",
		transactionColumns, eq(accountID), in(externalIDs))
	return c.listTransactions(ctx, path)
}

// ListInRange returns the account's transactions posted between from and to
// (inclusive) ordered by date.
func (c *Client) ListInRange(ctx context.Context, accountID, from, to string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInRange")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("range.from", from),
		attribute.String("range.to", to),
	)

	path := fmt.Sprintf("transactions?select=%s&account_id=%s&posted_at=gte.%s&posted_at=lte.%s&order=posted_at.asc",
		transactionColumns, eq(accountID), from, to)
	return c.listTransactions(ctx, path)
}

func (c *Client) listTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	err := c.call(ctx, "transactions", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		out = []domain.Transaction{}
		if isEmpty(body) {
			return nil
		}
		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode transactions: %w", err)
		}
		for _, r := range rows {
			out = append(out, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertTransactions bulk inserts txs and returns the stored rows.
func (c *Client) InsertTransactions(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions", len(txs)))

	if len(txs) == 0 {
		return []domain.Transaction{}, nil
	}

	payload := make([]transactionRow, len(txs))
	for i, tx := range txs {
		payload[i] = toRow(tx)
	}

	// Bulk inserts are not retried; the batch either landed or it did not.
	res, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "transactions?select="+transactionColumns, payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	var rows []transactionRow
	if body, _ := res.([]byte); !isEmpty(body) {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode inserted transactions: %w", err)
		}
	}

	out := make([]domain.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// UpdateCategorization stores the category (and description override, when
// set) chosen for a transaction.
func (c *Client) UpdateCategorization(ctx context.Context, cat domain.Categorization) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCategorization")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", cat.TransactionID))

	data := map[string]any{"category_id": cat.CategoryID}
	if cat.Description != "" {
		data["description"] = cat.Description
	}

	return c.call(ctx, "transactions", func() error {
		return c.doPatch(ctx, "transactions?id="+eq(cat.TransactionID), data)
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
