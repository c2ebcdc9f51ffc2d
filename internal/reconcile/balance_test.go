package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu            sync.Mutex
	failures      int
	discrepancies int
}

func (r *recorder) IncrBalanceLookupFailure() {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

func (r *recorder) IncrDiscrepancy() {
	r.mu.Lock()
	r.discrepancies++
	r.mu.Unlock()
}

func checkpoint(id, until, balance string) domain.Account {
	return domain.Account{
		ID:                id,
		Name:              "Conta " + id,
		ReconciledUntil:   &until,
		ReconciledBalance: dec(balance),
	}
}

func fixedBalance(value string) reconcile.BalanceLookupFunc {
	return func(_ context.Context, _, _ string) (*decimal.Decimal, error) {
		return dec(value), nil
	}
}

func TestCheck_ReportsDifference(t *testing.T) {
	var gotID, gotDate string
	lookup := reconcile.BalanceLookupFunc(func(_ context.Context, accountID, date string) (*decimal.Decimal, error) {
		gotID, gotDate = accountID, date
		return dec("1050"), nil
	})
	rec := &recorder{}
	checker := reconcile.NewBalanceChecker(lookup, zap.NewNop(), rec, 1)

	d := checker.Check(context.Background(), checkpoint("acc-1", "2025-01-31", "1000"))

	require.NotNil(t, d)
	assert.Equal(t, "acc-1", gotID)
	assert.Equal(t, "2025-01-31", gotDate)
	assert.Equal(t, "acc-1", d.AccountID)
	assert.Equal(t, "Conta acc-1", d.AccountName)
	assert.Equal(t, "2025-01-31", d.ReconciledUntil)
	assert.True(t, d.Difference.Equal(decimal.NewFromInt(50)), d.Difference.String())
	assert.True(t, d.ComputedBalance.Equal(decimal.NewFromInt(1050)))
	assert.True(t, d.ReconciledBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 1, rec.discrepancies)
}

func TestCheck_NegativeDifference(t *testing.T) {
	checker := reconcile.NewBalanceChecker(fixedBalance("975.50"), zap.NewNop(), nil, 1)
	d := checker.Check(context.Background(), checkpoint("acc-1", "2025-01-31", "1000"))
	require.NotNil(t, d)
	assert.Equal(t, "-24.5", d.Difference.String())
}

func TestCheck_WithinTolerance(t *testing.T) {
	for _, v := range []string{"1000", "1000.005", "999.99", "1000.01"} {
		checker := reconcile.NewBalanceChecker(fixedBalance(v), zap.NewNop(), nil, 1)
		assert.Nil(t, checker.Check(context.Background(), checkpoint("acc-1", "2025-01-31", "1000")), v)
	}
}

func TestCheck_NoCheckpoint(t *testing.T) {
	called := false
	lookup := reconcile.BalanceLookupFunc(func(context.Context, string, string) (*decimal.Decimal, error) {
		called = true
		return dec("1"), nil
	})
	checker := reconcile.NewBalanceChecker(lookup, zap.NewNop(), nil, 1)

	until := "2025-01-31"
	assert.Nil(t, checker.Check(context.Background(), domain.Account{ID: "a"}))
	assert.Nil(t, checker.Check(context.Background(), domain.Account{ID: "a", ReconciledUntil: &until}))
	assert.Nil(t, checker.Check(context.Background(), domain.Account{ID: "a", ReconciledBalance: dec("10")}))
	assert.False(t, called)
}

func TestCheck_LookupFailureIsNotADiscrepancy(t *testing.T) {
	rec := &recorder{}
	failing := reconcile.BalanceLookupFunc(func(context.Context, string, string) (*decimal.Decimal, error) {
		return nil, errors.New("rpc unavailable")
	})
	empty := reconcile.BalanceLookupFunc(func(context.Context, string, string) (*decimal.Decimal, error) {
		return nil, nil
	})

	acc := checkpoint("acc-1", "2025-01-31", "1000")
	assert.Nil(t, reconcile.NewBalanceChecker(failing, zap.NewNop(), rec, 1).Check(context.Background(), acc))
	assert.Nil(t, reconcile.NewBalanceChecker(empty, zap.NewNop(), rec, 1).Check(context.Background(), acc))
	assert.Equal(t, 2, rec.failures)
	assert.Equal(t, 0, rec.discrepancies)
}

func TestCheckAll_KeepsAccountOrder(t *testing.T) {
	balances := map[string]string{
		"a": "100",
		"b": "250",
		"c": "10",
		"d": "400",
	}
	lookup := reconcile.BalanceLookupFunc(func(_ context.Context, id, _ string) (*decimal.Decimal, error) {
		if id == "c" {
			return nil, errors.New("boom")
		}
		return dec(balances[id]), nil
	})
	checker := reconcile.NewBalanceChecker(lookup, zap.NewNop(), nil, 2)

	accounts := []domain.Account{
		checkpoint("a", "2025-01-31", "100"),
		checkpoint("b", "2025-01-31", "200"),
		checkpoint("c", "2025-01-31", "0"),
		{ID: "no-checkpoint"},
		checkpoint("d", "2025-01-31", "500"),
	}

	got := checker.CheckAll(context.Background(), accounts)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].AccountID)
	assert.Equal(t, "50", got[0].Difference.String())
	assert.Equal(t, "d", got[1].AccountID)
	assert.Equal(t, "-100", got[1].Difference.String())
}

func TestCheckAll_Empty(t *testing.T) {
	checker := reconcile.NewBalanceChecker(fixedBalance("0"), nil, nil, 0)
	got := checker.CheckAll(context.Background(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
