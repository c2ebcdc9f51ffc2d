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
// Categorization rules (implements port.RuleStore)
// ============================================================

// ListActiveRules reads the account's active rules in evaluation order.
// Requests go out with the service role key, so the set is authoritative
// regardless of what the caller submitted.
func (c *Client) ListActiveRules(ctx context.Context, accountID string) ([]domain.Rule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListActiveRules")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	rules := []domain.Rule{}
	err := c.call(ctx, "categorization_rules", func() error {
		path := fmt.Sprintf(
			"categorization_rules?select=id,account_id,name,match,action,active,priority,created_at&account_id=%s&active=eq.true&order=priority.asc,created_at.asc",
			eq(accountID),
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rules = []domain.Rule{}
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &rules); err != nil {
			return fmt.Errorf("decode categorization_rules: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("rules.count", len(rules)))
	return rules, nil
}
