package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// AccountBalanceAt implements port.BalanceLookup through the
// account_balance_at(p_account_id, p_date) function. A SQL null becomes a
// nil balance.
func (c *Client) AccountBalanceAt(ctx context.Context, accountID, date string) (*decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AccountBalanceAt")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("balance.date", date),
	)

	var balance *decimal.Decimal
	err := c.call(ctx, "balance", func() error {
		body, err := c.doRPC(ctx, "account_balance_at", map[string]any{
			"p_account_id": accountID,
			"p_date":       date,
		})
		if err != nil {
			return err
		}
		balance = nil
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &balance); err != nil {
			return fmt.Errorf("decode balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}
