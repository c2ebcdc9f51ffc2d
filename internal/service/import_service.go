// Package service provides the business logic layer (use cases).
package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/observability"
	"github.com/felipemotter/gestor-sub001/internal/ofx"
	"github.com/felipemotter/gestor-sub001/internal/port"
	"github.com/felipemotter/gestor-sub001/internal/rules"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

var importTracer = otel.Tracer("service/import")

const (
	duplicateWindowDays = 3
	duplicateMaxRatio   = 0.4
	dateLayout          = "2006-01-02"
)

var amountEpsilon = decimal.RequireFromString("0.01")

// ImportService turns uploaded statements into ledger transactions.
type ImportService struct {
	transactions port.TransactionStore
	batches      port.ImportBatchStore
	rules        port.RuleStore
	ruleCache    port.Cache[[]domain.Rule]
	matcher      *rules.Matcher
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewImportService creates the import service. The stores may be nil, in
// which case Preview only parses and applies caller supplied rules.
func NewImportService(
	transactions port.TransactionStore,
	batches port.ImportBatchStore,
	ruleStore port.RuleStore,
	ruleCache port.Cache[[]domain.Rule],
	matcher *rules.Matcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ImportService {
	if matcher == nil {
		matcher = rules.NewMatcher()
	}
	return &ImportService{
		transactions: transactions,
		batches:      batches,
		rules:        ruleStore,
		ruleCache:    ruleCache,
		matcher:      matcher,
		metrics:      metrics,
		logger:       logger,
	}
}

// ============================================================
// Preview
// ============================================================

// Preview parses content and annotates every entry with the rule that would
// categorize it and with what the ledger already holds for the account.
func (s *ImportService) Preview(ctx context.Context, accountID, content string, clientRules []domain.Rule) (*domain.ImportPreview, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.Preview")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("import_preview", time.Since(start))
	}()

	stmt, err := ofx.Parse(content)
	if err != nil {
		s.metrics.IncrStatementRejected()
		s.logger.Info("statement rejected",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.IncrStatementParsed()
	span.SetAttributes(attribute.Int("statement.transactions", len(stmt.Transactions)))

	rows := make([]domain.ImportRow, len(stmt.Transactions))
	txs := make([]domain.Transaction, len(stmt.Transactions))
	for i, p := range stmt.Transactions {
		txs[i] = p.ToTransaction(accountID)
		rows[i] = domain.ImportRow{Transaction: txs[i], Hash: p.Hash}
	}

	if len(clientRules) > 0 {
		matches := s.matcher.ApplyToBatch(clientRules, txs)
		for i, m := range matches {
			m := m
			rows[i].Rule = &m
			applyRule(&rows[i].Transaction, m)
		}
		s.metrics.AddRuleMatches(len(matches))
	}

	if accountID != "" && s.transactions != nil && len(txs) > 0 {
		if err := s.markKnown(ctx, accountID, rows); err != nil {
			return nil, err
		}
	}

	for _, w := range stmt.Warnings {
		s.logger.Warn("statement warning",
			zap.String("account_id", accountID),
			zap.String("warning", w),
		)
	}

	return &domain.ImportPreview{Statement: stmt, Rows: rows}, nil
}

// markKnown flags rows whose external id is already stored and rows that
// look like a transaction the user entered by hand.
func (s *ImportService) markKnown(ctx context.Context, accountID string, rows []domain.ImportRow) error {
	ids := make([]string, 0, len(rows))
	from, to := "", ""
	for _, r := range rows {
		if r.Transaction.ExternalID != "" {
			ids = append(ids, r.Transaction.ExternalID)
		}
		d := r.Transaction.PostedDate()
		if d == "" {
			continue
		}
		if from == "" || d < from {
			from = d
		}
		if to == "" || d > to {
			to = d
		}
	}

	var existing, nearby []domain.Transaction

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.transactions.ListByExternalIDs(gCtx, accountID, ids)
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			return fmt.Errorf("list existing transactions: %w", err)
		}
		existing = txs
		return nil
	})
	if from != "" {
		g.Go(func() error {
			txs, err := s.transactions.ListInRange(gCtx, accountID,
				shiftDate(from, -duplicateWindowDays), shiftDate(to, duplicateWindowDays))
			if err != nil {
				s.metrics.IncrExternalError("transactions")
				return fmt.Errorf("list nearby transactions: %w", err)
			}
			nearby = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	known := make(map[string]bool, len(existing))
	for _, tx := range existing {
		known[tx.ExternalID] = true
	}

	for i := range rows {
		row := &rows[i]
		if known[row.Transaction.ExternalID] {
			row.AlreadyImported = true
			continue
		}
		if dup := findPossibleDuplicate(row.Transaction, nearby); dup != nil {
			row.PossibleDuplicate = dup
		}
	}
	return nil
}

// findPossibleDuplicate returns the first stored transaction with the same
// amount, a date within the duplicate window and a similar description.
func findPossibleDuplicate(tx domain.Transaction, pool []domain.Transaction) *domain.Transaction {
	day, err := time.Parse(dateLayout, tx.PostedDate())
	if err != nil {
		return nil
	}
	text := strings.ToLower(strings.TrimSpace(tx.BankText()))

	for i := range pool {
		cand := pool[i]
		if cand.ExternalID != "" && cand.ExternalID == tx.ExternalID {
			continue
		}
		if cand.Amount.Sub(tx.Amount).Abs().GreaterThan(amountEpsilon) {
			continue
		}
		cDay, err := time.Parse(dateLayout, cand.PostedDate())
		if err != nil {
			continue
		}
		diff := cDay.Sub(day)
		if diff < 0 {
			diff = -diff
		}
		if diff > duplicateWindowDays*24*time.Hour {
			continue
		}
		if similar(text, strings.ToLower(strings.TrimSpace(cand.BankText()))) {
			return &cand
		}
	}
	return nil
}

// similar reports whether the edit distance between a and b is below 40% of
// the longer string.
func similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(dist)/float64(longest) < duplicateMaxRatio
}

// ============================================================
// Confirm
// ============================================================

// Confirm stores the reviewed rows, skipping those already in the ledger,
// then categorizes the new rows that still lack a category with the
// account's active rules. Re-submitting the same rows fails with
// ErrDuplicate.
func (s *ImportService) Confirm(ctx context.Context, accountID string, rows []domain.Transaction) (*domain.ImportResult, error) {
	ctx, span := importTracer.Start(ctx, "ImportService.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("rows", len(rows)),
	)

	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrValidation{Field: "transactions", Message: "at least one transaction is required"}
	}
	for i, r := range rows {
		if r.PostedDate() == "" {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("transactions[%d].posted_at", i), Message: "required"}
		}
	}

	if s.transactions == nil || s.batches == nil {
		return nil, &domain.ErrExternalService{Service: "ledger", Err: fmt.Errorf("no backend configured")}
	}

	hash := BatchHash(accountID, rows)
	prior, err := s.batches.FindImportBatch(ctx, accountID, hash)
	if err != nil {
		s.metrics.IncrExternalError("import_batches")
		return nil, fmt.Errorf("find import batch: %w", err)
	}
	if prior != nil {
		return nil, &domain.ErrDuplicate{Key: hash}
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ExternalID != "" {
			ids = append(ids, r.ExternalID)
		}
	}
	existing, err := s.transactions.ListByExternalIDs(ctx, accountID, ids)
	if err != nil {
		s.metrics.IncrExternalError("transactions")
		return nil, fmt.Errorf("list existing transactions: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, tx := range existing {
		seen[tx.ExternalID] = true
	}

	fresh := make([]domain.Transaction, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		if r.ExternalID != "" && seen[r.ExternalID] {
			skipped++
			continue
		}
		if r.ExternalID != "" {
			seen[r.ExternalID] = true
		}
		tx := r
		tx.ID = uuid.NewString()
		tx.AccountID = accountID
		tx.PostedAt = r.PostedDate()
		tx.Date = ""
		tx.Source = domain.SourceOFX
		tx.ReconciliationHint = nil
		fresh = append(fresh, tx)
	}

	inserted := []domain.Transaction{}
	if len(fresh) > 0 {
		inserted, err = s.transactions.InsertTransactions(ctx, fresh)
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			return nil, fmt.Errorf("insert transactions: %w", err)
		}
		if len(inserted) == 0 {
			inserted = fresh
		}
	}

	batch := &domain.ImportBatch{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Hash:      hash,
		RowCount:  len(rows),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.batches.CreateImportBatch(ctx, batch); err != nil {
		s.metrics.IncrExternalError("import_batches")
		s.logger.Error("failed to record import batch",
			zap.String("account_id", accountID),
			zap.String("hash", hash),
			zap.Error(err),
		)
	}

	categorized := s.categorize(ctx, accountID, inserted)

	s.metrics.AddImported(len(inserted), skipped, categorized)
	s.logger.Info("statement imported",
		zap.String("account_id", accountID),
		zap.String("batch_id", batch.ID),
		zap.Int("inserted", len(inserted)),
		zap.Int("skipped", skipped),
		zap.Int("categorized", categorized),
	)

	return &domain.ImportResult{
		BatchID:     batch.ID,
		Inserted:    len(inserted),
		Skipped:     skipped,
		Categorized: categorized,
	}, nil
}

// categorize applies the stored rule set to inserted rows without a
// category. Failures are logged; the import itself already succeeded.
func (s *ImportService) categorize(ctx context.Context, accountID string, txs []domain.Transaction) int {
	pending := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.CategoryID == "" {
			pending = append(pending, tx)
		}
	}
	if len(pending) == 0 || s.rules == nil {
		return 0
	}

	ruleSet, err := s.activeRules(ctx, accountID)
	if err != nil {
		s.metrics.IncrExternalError("categorization_rules")
		s.logger.Warn("could not load categorization rules",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return 0
	}
	if len(ruleSet) == 0 {
		return 0
	}

	matches := s.matcher.ApplyToBatch(ruleSet, pending)
	categorized := 0
	for i, tx := range pending {
		m, ok := matches[i]
		if !ok {
			continue
		}
		err := s.transactions.UpdateCategorization(ctx, domain.Categorization{
			TransactionID: tx.ID,
			CategoryID:    m.CategoryID,
			Description:   m.DescriptionOverride,
		})
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			s.logger.Warn("failed to store categorization",
				zap.String("transaction_id", tx.ID),
				zap.String("rule_id", m.RuleID),
				zap.Error(err),
			)
			continue
		}
		categorized++
	}
	s.metrics.AddRuleMatches(categorized)
	return categorized
}

func (s *ImportService) activeRules(ctx context.Context, accountID string) ([]domain.Rule, error) {
	key := "rules:" + accountID
	if s.ruleCache != nil {
		if cached, ok := s.ruleCache.Get(key); ok {
			s.metrics.IncrCacheHit("rules")
			return cached, nil
		}
		s.metrics.IncrCacheMiss("rules")
	}

	ruleSet, err := s.rules.ListActiveRules(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ruleSet = rules.SortRules(ruleSet)
	if s.ruleCache != nil {
		s.ruleCache.Set(key, ruleSet)
	}
	return ruleSet, nil
}

// BatchHash is the idempotency key of a confirmed submission: BLAKE2b-256
// over the account and every row's external id, amount, date and memo.
func BatchHash(accountID string, rows []domain.Transaction) string {
	var b strings.Builder
	b.WriteString(accountID)
	for _, r := range rows {
		b.WriteByte('\n')
		b.WriteString(r.ExternalID)
		b.WriteByte('|')
		b.WriteString(r.Amount.String())
		b.WriteByte('|')
		b.WriteString(r.PostedDate())
		b.WriteByte('|')
		b.WriteString(r.BankText())
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func applyRule(tx *domain.Transaction, m domain.RuleMatchResult) {
	tx.CategoryID = m.CategoryID
	if m.DescriptionOverride != "" {
		tx.Description = m.DescriptionOverride
	}
}

func shiftDate(date string, days int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}
