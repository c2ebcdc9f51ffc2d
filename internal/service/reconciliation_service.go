package service

import (
	"context"
	"fmt"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/observability"
	"github.com/felipemotter/gestor-sub001/internal/port"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reconcileTracer = otel.Tracer("service/reconciliation")

// ReconciliationService exposes the matching passes and the balance
// checkpoint audit.
type ReconciliationService struct {
	accounts port.AccountStore
	checker  *reconcile.BalanceChecker
	defaults domain.ReconciliationSettings
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReconciliationService creates the reconciliation service. accounts and
// checker may be nil when no backend is configured; Discrepancies then fails.
func NewReconciliationService(
	accounts port.AccountStore,
	checker *reconcile.BalanceChecker,
	defaults domain.ReconciliationSettings,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		accounts: accounts,
		checker:  checker,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
	}
}

// AutoMatch runs the exact pass.
func (s *ReconciliationService) AutoMatch(ctx context.Context, manuals, imported []domain.Transaction) domain.AutoMatchResult {
	_, span := reconcileTracer.Start(ctx, "ReconciliationService.AutoMatch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("manuals", len(manuals)),
		attribute.Int("imported", len(imported)),
	)

	res := reconcile.AutoMatchExact(manuals, imported)
	s.metrics.AddExactMatches(len(res.Matches))
	span.SetAttributes(attribute.Int("matches", len(res.Matches)))
	return res
}

// Rank scores imported candidates for one manual transaction. Without
// explicit settings the configured defaults apply.
func (s *ReconciliationService) Rank(ctx context.Context, manual domain.Transaction, imported []domain.Transaction, settings *domain.ReconciliationSettings, allowCrossAccount bool) []domain.MatchCandidate {
	_, span := reconcileTracer.Start(ctx, "ReconciliationService.Rank")
	defer span.End()
	span.SetAttributes(
		attribute.String("manual.id", manual.ID),
		attribute.Int("imported", len(imported)),
		attribute.Bool("cross_account", allowCrossAccount),
	)

	if settings == nil {
		defaults := s.defaults
		settings = &defaults
	}
	out := reconcile.RankCandidates(manual, imported, settings, allowCrossAccount)
	s.metrics.AddRankedCandidates(len(out))
	return out
}

// Settings resolves a client override against the configured defaults.
func (s *ReconciliationService) Settings(o *domain.SettingsOverride) domain.ReconciliationSettings {
	return o.Apply(s.defaults)
}

// Discrepancies audits every reconciled account of the owner.
func (s *ReconciliationService) Discrepancies(ctx context.Context, ownerID string) ([]domain.BalanceDiscrepancy, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconciliationService.Discrepancies")
	defer span.End()
	span.SetAttributes(attribute.String("owner.id", ownerID))

	if s.accounts == nil || s.checker == nil {
		return nil, &domain.ErrExternalService{Service: "ledger", Err: fmt.Errorf("no backend configured")}
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("discrepancies", time.Since(start))
	}()

	accounts, err := s.accounts.ListReconciledAccounts(ctx, ownerID)
	if err != nil {
		s.metrics.IncrExternalError("accounts")
		return nil, fmt.Errorf("list reconciled accounts: %w", err)
	}

	found := s.checker.CheckAll(ctx, accounts)
	if len(found) > 0 {
		s.logger.Info("balance discrepancies found",
			zap.String("owner_id", ownerID),
			zap.Int("accounts", len(accounts)),
			zap.Int("discrepancies", len(found)),
		)
	}
	return found, nil
}
