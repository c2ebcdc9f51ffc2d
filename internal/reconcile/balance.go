package reconcile

import (
	"context"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/resilience"
	"github.com/felipemotter/gestor-sub001/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var balanceTracer = otel.Tracer("balance-checker")

// BalanceLookupFunc adapts a function to port.BalanceLookup.
type BalanceLookupFunc func(ctx context.Context, accountID, date string) (*decimal.Decimal, error)

// AccountBalanceAt calls f.
func (f BalanceLookupFunc) AccountBalanceAt(ctx context.Context, accountID, date string) (*decimal.Decimal, error) {
	return f(ctx, accountID, date)
}

// DiscrepancyRecorder counts checker outcomes.
type DiscrepancyRecorder interface {
	IncrBalanceLookupFailure()
	IncrDiscrepancy()
}

// BalanceChecker compares recorded reconciliation checkpoints with the
// balance the ledger computes for the same date.
type BalanceChecker struct {
	lookup   port.BalanceLookup
	logger   *zap.Logger
	recorder DiscrepancyRecorder
	bulkhead *resilience.Bulkhead
}

// NewBalanceChecker creates a checker. recorder may be nil; maxConcurrency
// bounds CheckAll and defaults to 1.
func NewBalanceChecker(lookup port.BalanceLookup, logger *zap.Logger, recorder DiscrepancyRecorder, maxConcurrency int) *BalanceChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &BalanceChecker{
		lookup:   lookup,
		logger:   logger,
		recorder: recorder,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
	}
}

// Check returns the discrepancy for account, or nil when the account has no
// checkpoint, the computed balance is unavailable, or the two agree within
// 0.01. Lookup failures are logged and never reported as discrepancies.
func (c *BalanceChecker) Check(ctx context.Context, account domain.Account) *domain.BalanceDiscrepancy {
	if !account.HasCheckpoint() {
		return nil
	}
	until := *account.ReconciledUntil
	recorded := *account.ReconciledBalance

	computed, err := c.lookup.AccountBalanceAt(ctx, account.ID, until)
	if err != nil {
		c.logger.Warn("balance lookup failed",
			zap.String("account_id", account.ID),
			zap.String("date", until),
			zap.Error(err),
		)
		c.lookupFailed()
		return nil
	}
	if computed == nil {
		c.logger.Warn("balance lookup returned no value",
			zap.String("account_id", account.ID),
			zap.String("date", until),
		)
		c.lookupFailed()
		return nil
	}

	diff := computed.Sub(recorded)
	if diff.Abs().LessThanOrEqual(amountEpsilon) {
		return nil
	}

	if c.recorder != nil {
		c.recorder.IncrDiscrepancy()
	}
	return &domain.BalanceDiscrepancy{
		AccountID:         account.ID,
		AccountName:       account.Name,
		ReconciledUntil:   until,
		ReconciledBalance: recorded,
		ComputedBalance:   *computed,
		Difference:        diff,
	}
}

// CheckAll checks every account concurrently and returns the discrepancies
// in account order.
func (c *BalanceChecker) CheckAll(ctx context.Context, accounts []domain.Account) []domain.BalanceDiscrepancy {
	ctx, span := balanceTracer.Start(ctx, "BalanceChecker.CheckAll")
	defer span.End()
	span.SetAttributes(attribute.Int("accounts", len(accounts)))

	found := make([]*domain.BalanceDiscrepancy, len(accounts))
	done := make(chan struct{}, len(accounts))

	for i := range accounts {
		i := i
		go func() {
			defer func() { done <- struct{}{} }()
			if err := c.bulkhead.Acquire(ctx); err != nil {
				return
			}
			defer c.bulkhead.Release()
			found[i] = c.Check(ctx, accounts[i])
		}()
	}
	for range accounts {
		<-done
	}

	out := []domain.BalanceDiscrepancy{}
	for _, d := range found {
		if d != nil {
			out = append(out, *d)
		}
	}
	span.SetAttributes(attribute.Int("discrepancies", len(out)))
	return out
}

func (c *BalanceChecker) lookupFailed() {
	if c.recorder != nil {
		c.recorder.IncrBalanceLookupFailure()
	}
}
