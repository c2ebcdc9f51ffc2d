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
// Import batches (implements port.ImportBatchStore)
// ============================================================

// FindImportBatch returns the batch with the given content hash, or nil.
func (c *Client) FindImportBatch(ctx context.Context, accountID, hash string) (*domain.ImportBatch, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindImportBatch")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var rows []domain.ImportBatch
	err := c.call(ctx, "import_batches", func() error {
		path := fmt.Sprintf("import_batches?account_id=%s&hash=%s&limit=1", eq(accountID), eq(hash))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows = nil
		if isEmpty(body) {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode import_batches: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) CreateImportBatch(ctx context.Context, batch *domain.ImportBatch) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateImportBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", batch.AccountID),
		attribute.Int("batch.rows", batch.RowCount),
	)

	// No retry: a timed out insert may still have landed.
	_, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "import_batches", batch)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/import_batches", Err: err}
	}
	return nil
}
