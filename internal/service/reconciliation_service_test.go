package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/observability"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"
	"github.com/felipemotter/gestor-sub001/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAccountStore struct {
	accounts []domain.Account
	err      error
}

func (m *mockAccountStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			return &m.accounts[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: id}
}

func (m *mockAccountStore) ListReconciledAccounts(_ context.Context, _ string) ([]domain.Account, error) {
	return m.accounts, m.err
}

func strp(s string) *string { return &s }

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newReconciliationService(accounts *mockAccountStore, lookup reconcile.BalanceLookupFunc, defaults domain.ReconciliationSettings) (*service.ReconciliationService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	checker := reconcile.NewBalanceChecker(lookup, zap.NewNop(), metrics, 4)
	return service.NewReconciliationService(accounts, checker, defaults, metrics, zap.NewNop()), metrics
}

func TestReconciliationService_AutoMatch(t *testing.T) {
	svc, metrics := newReconciliationService(&mockAccountStore{}, nil, domain.DefaultReconciliationSettings())

	manual := domain.Transaction{ID: "m", Amount: decimal.NewFromInt(-100), PostedAt: "2025-01-15"}
	res := svc.AutoMatch(context.Background(),
		[]domain.Transaction{manual},
		[]domain.Transaction{
			{ID: "i1", Amount: decimal.NewFromInt(-100), PostedAt: "2025-01-16"},
			{ID: "i2", Amount: decimal.NewFromInt(-100), PostedAt: "2025-01-15"},
		},
	)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "i2", res.Matches[0].Imported.ID)
	assert.Equal(t, int64(1), metrics.EngineSnapshot().ExactMatches)
}

func TestReconciliationService_RankUsesConfiguredDefaults(t *testing.T) {
	defaults := domain.DefaultReconciliationSettings()
	defaults.DateToleranceDays = 5
	svc, _ := newReconciliationService(&mockAccountStore{}, nil, defaults)

	manual := domain.Transaction{ID: "m", Amount: decimal.NewFromInt(-100), PostedAt: "2025-01-15"}
	pool := []domain.Transaction{{ID: "far", Amount: decimal.NewFromInt(-100), PostedAt: "2025-01-20"}}

	got := svc.Rank(context.Background(), manual, pool, nil, false)
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].Score)

	explicit := domain.DefaultReconciliationSettings()
	assert.Empty(t, svc.Rank(context.Background(), manual, pool, &explicit, false))
}

func TestReconciliationService_SettingsOverride(t *testing.T) {
	defaults := domain.DefaultReconciliationSettings()
	defaults.DateToleranceDays = 5
	svc, _ := newReconciliationService(&mockAccountStore{}, nil, defaults)

	assert.Equal(t, defaults, svc.Settings(nil))

	on := true
	got := svc.Settings(&domain.SettingsOverride{DescriptionMatching: &on})
	assert.Equal(t, 5, got.DateToleranceDays)
	assert.True(t, got.AmountTolerance.Equal(decimal.NewFromInt(1)))
	assert.True(t, got.DescriptionMatching)

	days := 0
	tol := decimal.RequireFromString("0.5")
	got = svc.Settings(&domain.SettingsOverride{DateToleranceDays: &days, AmountTolerance: &tol})
	assert.Equal(t, 0, got.DateToleranceDays)
	assert.True(t, got.AmountTolerance.Equal(tol))
	assert.False(t, got.DescriptionMatching)
}

func TestReconciliationService_Discrepancies(t *testing.T) {
	accounts := &mockAccountStore{accounts: []domain.Account{
		{ID: "acc-1", Name: "Nubank", ReconciledUntil: strp("2025-01-31"), ReconciledBalance: decp("1000")},
		{ID: "acc-2", Name: "Itaú", ReconciledUntil: strp("2025-01-31"), ReconciledBalance: decp("1000")},
	}}
	lookup := reconcile.BalanceLookupFunc(func(_ context.Context, id, _ string) (*decimal.Decimal, error) {
		if id == "acc-1" {
			return decp("1050"), nil
		}
		return decp("1000.005"), nil
	})
	svc, metrics := newReconciliationService(accounts, lookup, domain.DefaultReconciliationSettings())

	got, err := svc.Discrepancies(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acc-1", got[0].AccountID)
	assert.Equal(t, "50", got[0].Difference.String())
	assert.Equal(t, int64(1), metrics.EngineSnapshot().Discrepancies)
}

func TestReconciliationService_DiscrepanciesStoreError(t *testing.T) {
	svc, _ := newReconciliationService(&mockAccountStore{err: errors.New("down")}, nil, domain.DefaultReconciliationSettings())
	_, err := svc.Discrepancies(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestReconciliationService_NoBackend(t *testing.T) {
	svc := service.NewReconciliationService(nil, nil, domain.DefaultReconciliationSettings(), observability.NewMetrics(), zap.NewNop())
	_, err := svc.Discrepancies(context.Background(), "user-1")
	var ext *domain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
}
