package reconcile_test

import (
	"testing"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/reconcile"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(id, amount, date string) domain.Transaction {
	return domain.Transaction{ID: id, Amount: decimal.RequireFromString(amount), PostedAt: date}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func TestAutoMatchExact_FirstFit(t *testing.T) {
	manuals := []domain.Transaction{
		txn("m1", "-100.00", "2025-01-15"),
		txn("m2", "-100.00", "2025-01-15"),
		txn("m3", "-100.00", "2025-01-15"),
		txn("m4", "-42.00", "2025-01-20"),
	}
	imported := []domain.Transaction{
		txn("i1", "-99.00", "2025-01-15"),
		txn("i2", "100.005", "2025-01-15"),
		txn("i3", "-100", "2025-01-15T10:00:00Z"),
		txn("i4", "-42.00", "2025-01-21"),
	}

	got := reconcile.AutoMatchExact(manuals, imported)

	require.Len(t, got.Matches, 2)
	assert.Equal(t, "m1", got.Matches[0].Manual.ID)
	assert.Equal(t, "i2", got.Matches[0].Imported.ID)
	assert.Equal(t, "m2", got.Matches[1].Manual.ID)
	assert.Equal(t, "i3", got.Matches[1].Imported.ID)
	for _, m := range got.Matches {
		assert.Equal(t, reconcile.ExactScore, m.Score)
		assert.True(t, m.Exact)
	}
	assert.Equal(t, []string{"m3", "m4"}, ids(got.UnmatchedManuals))
	assert.Equal(t, []string{"i1", "i4"}, ids(got.UnmatchedImported))
}

func TestAutoMatchExact_OneToOne(t *testing.T) {
	manuals := []domain.Transaction{
		txn("m1", "-10", "2025-02-01"),
		txn("m2", "-10", "2025-02-01"),
		txn("m3", "-20", "2025-02-02"),
		txn("m4", "-10", "bad"),
	}
	imported := []domain.Transaction{
		txn("i1", "-10", "2025-02-01"),
		txn("i2", "-20", "2025-02-02"),
		txn("i3", "-20", "2025-02-02"),
	}

	got := reconcile.AutoMatchExact(manuals, imported)

	seenManual := map[string]int{}
	seenImported := map[string]int{}
	for _, m := range got.Matches {
		seenManual[m.Manual.ID]++
		seenImported[m.Imported.ID]++
	}
	for _, m := range got.UnmatchedManuals {
		seenManual[m.ID]++
	}
	for _, i := range got.UnmatchedImported {
		seenImported[i.ID]++
	}
	for _, m := range manuals {
		assert.Equal(t, 1, seenManual[m.ID], m.ID)
	}
	for _, i := range imported {
		assert.Equal(t, 1, seenImported[i.ID], i.ID)
	}
	assert.Len(t, got.Matches, 2)
}

func TestAutoMatchExact_Empty(t *testing.T) {
	got := reconcile.AutoMatchExact(nil, nil)
	assert.Empty(t, got.Matches)
	assert.NotNil(t, got.Matches)
	assert.NotNil(t, got.UnmatchedManuals)
	assert.NotNil(t, got.UnmatchedImported)
}

func TestNextDayPairIsRankedButNotExact(t *testing.T) {
	manual := txn("m", "-100", "2025-01-15")
	imported := []domain.Transaction{txn("i", "-100", "2025-01-16")}

	ranked := reconcile.RankCandidates(manual, imported, nil, false)
	require.Len(t, ranked, 1)
	assert.Equal(t, 70, ranked[0].Score)
	assert.Equal(t, "1 dia de diferença, mesmo valor", ranked[0].Reasons)

	exact := reconcile.AutoMatchExact([]domain.Transaction{manual}, imported)
	assert.Empty(t, exact.Matches)
}

func TestRankCandidates_Scoring(t *testing.T) {
	manual := txn("m", "-100", "2025-01-15")

	tests := []struct {
		name    string
		cand    domain.Transaction
		score   int
		reasons string
		dropped bool
	}{
		{"same day same amount", txn("c", "-100", "2025-01-15"), 80, "mesma data, mesmo valor", false},
		{"two days", txn("c", "-100", "2025-01-13"), 60, "2 dias de diferença, mesmo valor", false},
		{"three days", txn("c", "-100", "2025-01-18"), 50, "3 dias de diferença, mesmo valor", false},
		{"outside window", txn("c", "-100", "2025-01-19"), 0, "", true},
		{"approximate amount", txn("c", "-100.90", "2025-01-15"), 65, "mesma data, valor aproximado", false},
		{"credit side counts absolute", txn("c", "100", "2025-01-15"), 80, "mesma data, mesmo valor", false},
		{"amount beyond tolerance", txn("c", "-101.50", "2025-01-15"), 0, "", true},
		{"three days approx is at floor", txn("c", "-100.50", "2025-01-12"), 0, "", true},
		{"unparseable date", txn("c", "-100", ""), 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile.RankCandidates(manual, []domain.Transaction{tt.cand}, nil, false)
			if tt.dropped {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.score, got[0].Score)
			assert.Equal(t, tt.reasons, got[0].Reasons)
		})
	}
}

func TestRankCandidates_Hints(t *testing.T) {
	manual := txn("m", "-100", "2025-01-15")
	manual.ReconciliationHint = &domain.ReconciliationHint{
		DescriptionContains: "joao",
		AmountMin:           dec("90"),
		AmountMax:           dec("110"),
	}

	cand := txn("c", "-100", "2025-01-16")
	cand.OriginalDescription = "PIX ENVIADO - JOAO SILVA"

	got := reconcile.RankCandidates(manual, []domain.Transaction{cand}, nil, false)
	require.Len(t, got, 1)
	assert.Equal(t, 95, got[0].Score)
	assert.Equal(t, "1 dia de diferença, mesmo valor, descrição da dica, faixa de valor da dica", got[0].Reasons)

	manual.ReconciliationHint.AmountMax = dec("99.99")
	got = reconcile.RankCandidates(manual, []domain.Transaction{cand}, nil, false)
	require.Len(t, got, 1)
	assert.Equal(t, 85, got[0].Score)
}

func TestRankCandidates_DescriptionMatching(t *testing.T) {
	manual := txn("m", "-55.90", "2025-01-20")
	manual.Description = "Netflix"

	cand := txn("c", "-55.90", "2025-01-20")
	cand.Description = "NETFLIX.COM"

	off := reconcile.RankCandidates(manual, []domain.Transaction{cand}, nil, false)
	require.Len(t, off, 1)
	assert.Equal(t, 80, off[0].Score)

	settings := domain.DefaultReconciliationSettings()
	settings.DescriptionMatching = true
	on := reconcile.RankCandidates(manual, []domain.Transaction{cand}, &settings, false)
	require.Len(t, on, 1)
	assert.Equal(t, 90, on[0].Score)
	assert.Equal(t, "mesma data, mesmo valor, descrição semelhante", on[0].Reasons)

	manual.Description = "Ne"
	short := reconcile.RankCandidates(manual, []domain.Transaction{cand}, &settings, false)
	require.Len(t, short, 1)
	assert.Equal(t, 80, short[0].Score)
}

func TestRankCandidates_CrossAccount(t *testing.T) {
	manual := txn("m", "-100", "2025-01-15")
	manual.AccountID = "acc-1"

	same := txn("same", "-100", "2025-01-17")
	same.AccountID = "acc-1"
	other := txn("other", "-100", "2025-01-15")
	other.AccountID = "acc-2"
	otherFar := txn("other-far", "-100", "2025-01-18")
	otherFar.AccountID = "acc-2"
	unknown := txn("unknown", "-100", "2025-01-15")

	pool := []domain.Transaction{same, other, otherFar, unknown}

	disallowed := reconcile.RankCandidates(manual, pool, nil, false)
	assert.Equal(t, []string{"unknown", "same"}, candidateIDs(disallowed))

	allowed := reconcile.RankCandidates(manual, pool, nil, true)
	require.Len(t, allowed, 3)
	assert.Equal(t, []string{"unknown", "same", "other"}, candidateIDs(allowed))
	assert.Equal(t, 60, allowed[2].Score)
	assert.Equal(t, []string{"outra conta"}, allowed[2].Penalties)
	assert.Equal(t, "mesma data, mesmo valor", allowed[2].Reasons)
}

func TestRankCandidates_StableOrderAndFloor(t *testing.T) {
	manual := txn("m", "-10", "2025-03-10")
	settings := &domain.ReconciliationSettings{
		DateToleranceDays: 10,
		AmountTolerance:   decimal.NewFromInt(5),
	}
	pool := []domain.Transaction{
		txn("a", "-10", "2025-03-11"),
		txn("b", "-10", "2025-03-09"),
		txn("c", "-12", "2025-03-10"),
		txn("d", "-10", "2025-03-10"),
		txn("e", "-13", "2025-03-17"),
	}

	got := reconcile.RankCandidates(manual, pool, settings, false)

	assert.Equal(t, []string{"d", "a", "b", "c"}, candidateIDs(got))
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Score, reconcile.MinScore)
	}
}

func candidateIDs(cs []domain.MatchCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Transaction.ID
	}
	return out
}
