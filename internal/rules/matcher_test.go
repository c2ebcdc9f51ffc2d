package rules_test

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/infra/cache"
	"github.com/felipemotter/gestor-sub001/internal/rules"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intp(n int) *int { return &n }

func tx(memo, amount, date string) domain.Transaction {
	return domain.Transaction{Memo: memo, Amount: decimal.RequireFromString(amount), PostedAt: date}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEvaluate_Conditions(t *testing.T) {
	base := tx("POSTO IPIRANGA COMBUSTIVEL", "-310.00", "2025-01-06")

	tests := []struct {
		name  string
		match domain.RuleMatch
		tx    domain.Transaction
		want  bool
	}{
		{"empty match accepts everything", domain.RuleMatch{}, base, true},
		{"contains is case insensitive", domain.RuleMatch{DescriptionContains: "combustivel"}, base, true},
		{"contains misses", domain.RuleMatch{DescriptionContains: "mercado"}, base, false},
		{"regex matches", domain.RuleMatch{DescriptionRegex: `^posto\s+\w+`}, base, true},
		{"regex misses", domain.RuleMatch{DescriptionRegex: `^shell`}, base, false},
		{"invalid regex fails closed", domain.RuleMatch{DescriptionRegex: `posto(`}, base, false},
		{"overlong regex fails closed", domain.RuleMatch{DescriptionRegex: strings.Repeat("a", rules.MaxPatternLength+1)}, base, false},
		{"amount exact on absolute value", domain.RuleMatch{AmountExact: dec("310")}, base, true},
		{"amount exact negative target", domain.RuleMatch{AmountExact: dec("-310.005")}, base, true},
		{"amount exact outside residue", domain.RuleMatch{AmountExact: dec("310.01")}, base, false},
		{"amount min inclusive", domain.RuleMatch{AmountMin: dec("310")}, base, true},
		{"amount max inclusive", domain.RuleMatch{AmountMax: dec("310")}, base, true},
		{"amount above max", domain.RuleMatch{AmountMax: dec("309.99")}, base, false},
		{"amount below min", domain.RuleMatch{AmountMin: dec("310.01")}, base, false},
		{"day of month", domain.RuleMatch{DayOfMonth: intp(6)}, base, true},
		{"other day of month", domain.RuleMatch{DayOfMonth: intp(7)}, base, false},
		{"date after inclusive", domain.RuleMatch{DateAfter: "2025-01-06"}, base, true},
		{"date before inclusive", domain.RuleMatch{DateBefore: "2025-01-06"}, base, true},
		{"date after excludes", domain.RuleMatch{DateAfter: "2025-01-07"}, base, false},
		{"date before excludes", domain.RuleMatch{DateBefore: "2025-01-05"}, base, false},
		{"legacy date field", domain.RuleMatch{DayOfMonth: intp(15)},
			domain.Transaction{Memo: "x", Amount: decimal.NewFromInt(1), Date: "2025-01-15"}, true},
		{"missing date fails day", domain.RuleMatch{DayOfMonth: intp(6)}, tx("POSTO", "-1", ""), false},
		{"missing date fails range", domain.RuleMatch{DateAfter: "2000-01-01"}, tx("POSTO", "-1", ""), false},
		{"garbage date fails day", domain.RuleMatch{DayOfMonth: intp(6)}, tx("POSTO", "-1", "06/01/2025"), false},
		{"conjunction all hold", domain.RuleMatch{
			DescriptionContains: "posto",
			AmountMin:           dec("100"),
			AmountMax:           dec("500"),
			DateAfter:           "2025-01-01",
		}, base, true},
		{"conjunction one fails", domain.RuleMatch{
			DescriptionContains: "posto",
			AmountMin:           dec("400"),
		}, base, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Evaluate(tt.match, tt.tx))
		})
	}
}

func TestEvaluate_TextPrecedence(t *testing.T) {
	txn := domain.Transaction{
		Amount:              decimal.NewFromInt(-10),
		Description:         "lunch with team",
		Memo:                "IFOOD *RESTAURANTE",
		OriginalDescription: "PAG*IFOOD",
	}
	assert.True(t, rules.Evaluate(domain.RuleMatch{DescriptionContains: "pag*ifood"}, txn))
	assert.False(t, rules.Evaluate(domain.RuleMatch{DescriptionContains: "restaurante"}, txn))
	assert.False(t, rules.Evaluate(domain.RuleMatch{DescriptionContains: "lunch"}, txn))

	txn.OriginalDescription = ""
	assert.True(t, rules.Evaluate(domain.RuleMatch{DescriptionRegex: `restaurante$`}, txn))

	txn.Memo = ""
	assert.True(t, rules.Evaluate(domain.RuleMatch{DescriptionContains: "LUNCH"}, txn))
}

func TestFindFirst(t *testing.T) {
	rs := []domain.Rule{
		{ID: "r0", Name: "disabled", Active: false, Match: domain.RuleMatch{DescriptionContains: "posto"},
			Action: domain.RuleAction{CategoryID: "cat-disabled"}},
		{ID: "r1", Name: "fuel", Active: true, Match: domain.RuleMatch{DescriptionContains: "posto"},
			Action: domain.RuleAction{CategoryID: "cat-fuel", DescriptionOverride: "Combustível"}},
		{ID: "r2", Name: "any", Active: true, Action: domain.RuleAction{CategoryID: "cat-any"}},
	}

	got := rules.FindFirst(rs, tx("POSTO SHELL", "-260", "2025-01-10"))
	require.NotNil(t, got)
	assert.Equal(t, domain.RuleMatchResult{
		RuleID:              "r1",
		RuleName:            "fuel",
		CategoryID:          "cat-fuel",
		DescriptionOverride: "Combustível",
	}, *got)

	got = rules.FindFirst(rs, tx("NETFLIX.COM", "-55.90", "2025-01-20"))
	require.NotNil(t, got)
	assert.Equal(t, "cat-any", got.CategoryID)

	assert.Nil(t, rules.FindFirst(rs[:2], tx("NETFLIX.COM", "-55.90", "2025-01-20")))
	assert.Nil(t, rules.FindFirst(nil, tx("NETFLIX.COM", "-55.90", "2025-01-20")))
}

func TestApplyToBatch_PriorityOnlyDisambiguatesOverlaps(t *testing.T) {
	rs := []domain.Rule{
		{ID: "general", Active: true, Priority: 10, CreatedAt: day("2025-01-01"),
			Match: domain.RuleMatch{DescriptionContains: "posto"}, Action: domain.RuleAction{CategoryID: "cat-general"}},
		{ID: "fuel", Active: true, Priority: 1, CreatedAt: day("2025-01-02"),
			Match: domain.RuleMatch{DescriptionContains: "combustivel"}, Action: domain.RuleAction{CategoryID: "cat-fuel"}},
	}
	txs := []domain.Transaction{
		tx("POSTO SHELL", "-260", "2025-01-10"),
		tx("POSTO IPIRANGA COMBUSTIVEL", "-310", "2025-01-06"),
		tx("NETFLIX.COM", "-55.90", "2025-01-20"),
	}

	got := rules.ApplyToBatch(rs, txs)

	require.Len(t, got, 2)
	assert.Equal(t, "cat-general", got[0].CategoryID)
	assert.Equal(t, "cat-fuel", got[1].CategoryID)
	_, ok := got[2]
	assert.False(t, ok, "unmatched index must be absent")
}

func TestApplyToBatch_TiesGoToEarlierRule(t *testing.T) {
	rs := []domain.Rule{
		{ID: "newer", Active: true, Priority: 5, CreatedAt: day("2025-03-01"), Action: domain.RuleAction{CategoryID: "newer"}},
		{ID: "older", Active: true, Priority: 5, CreatedAt: day("2025-02-01"), Action: domain.RuleAction{CategoryID: "older"}},
	}
	got := rules.ApplyToBatch(rs, []domain.Transaction{tx("ANY", "-1", "2025-01-01")})
	assert.Equal(t, "older", got[0].RuleID)

	// caller order is untouched
	assert.Equal(t, "newer", rs[0].ID)
}

func TestSortRules_Stable(t *testing.T) {
	at := day("2025-01-01")
	rs := []domain.Rule{
		{ID: "c", Priority: 2, CreatedAt: at},
		{ID: "a", Priority: 1, CreatedAt: at},
		{ID: "b", Priority: 1, CreatedAt: at},
		{ID: "d", Priority: 0, CreatedAt: at.Add(time.Hour)},
	}
	sorted := rules.SortRules(rs)
	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

type countingObserver struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (o *countingObserver) IncrCacheHit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *countingObserver) IncrCacheMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func TestMatcher_PatternCache(t *testing.T) {
	obs := &countingObserver{}
	m := rules.NewMatcher(
		rules.WithPatternCache(cache.New[*regexp.Regexp](time.Minute)),
		rules.WithCacheObserver(obs),
	)

	match := domain.RuleMatch{DescriptionRegex: `netflix`}
	bad := domain.RuleMatch{DescriptionRegex: `[`}
	txn := tx("NETFLIX.COM", "-55.90", "2025-01-20")

	assert.True(t, m.Evaluate(match, txn))
	assert.True(t, m.Evaluate(match, txn))
	assert.False(t, m.Evaluate(bad, txn))
	assert.False(t, m.Evaluate(bad, txn))

	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 2, obs.misses)
}

func TestMatcher_ParallelBatchIsDeterministic(t *testing.T) {
	rs := []domain.Rule{
		{ID: "even", Active: true, Priority: 1, Match: domain.RuleMatch{DescriptionRegex: `[02468]$`},
			Action: domain.RuleAction{CategoryID: "even"}},
		{ID: "big", Active: true, Priority: 2, Match: domain.RuleMatch{AmountMin: dec("100")},
			Action: domain.RuleAction{CategoryID: "big"}},
	}
	txs := make([]domain.Transaction, 500)
	for i := range txs {
		txs[i] = tx(fmt.Sprintf("ITEM %d", i), fmt.Sprintf("-%d", i), "2025-01-01")
	}

	serial := rules.ApplyToBatch(rs, txs)
	parallel := rules.NewMatcher(
		rules.WithWorkers(8),
		rules.WithPatternCache(cache.New[*regexp.Regexp](time.Minute)),
	).ApplyToBatch(rs, txs)

	assert.Equal(t, serial, parallel)
	assert.Equal(t, "even", parallel[0].CategoryID)
	assert.Equal(t, "big", parallel[101].CategoryID)
	_, ok := parallel[99]
	assert.False(t, ok)
}
