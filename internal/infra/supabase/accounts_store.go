package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felipemotter/gestor-sub001/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Accounts (implements port.AccountStore)
// ============================================================

const accountColumns = "id,owner_id,name,currency,reconciled_until,reconciled_balance"

func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var rows []domain.Account
	err := c.call(ctx, "accounts", func() error {
		path := fmt.Sprintf("accounts?select=%s&id=%s&limit=1", accountColumns, eq(accountID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows = nil
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &rows[0], nil
}

// ListReconciledAccounts returns the owner's accounts that carry a
// reconciliation checkpoint.
func (c *Client) ListReconciledAccounts(ctx context.Context, ownerID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReconciledAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	rows := []domain.Account{}
	err := c.call(ctx, "accounts", func() error {
		path := fmt.Sprintf(
			"accounts?select=%s&owner_id=%s&reconciled_until=not.is.null&reconciled_balance=not.is.null&order=created_at.asc",
			accountColumns, eq(ownerID),
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows = []domain.Account{}
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode accounts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
