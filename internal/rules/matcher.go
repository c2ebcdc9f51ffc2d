// Package rules evaluates categorization rules against transactions.
//
// A rule matches when every condition it sets holds. Rule sets are applied
// in priority order (lower first, then oldest first) and the first active
// match wins.
package rules

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/felipemotter/gestor-sub001/internal/domain"
	"github.com/felipemotter/gestor-sub001/internal/port"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MaxPatternLength bounds user supplied regular expressions. Go's RE2 engine
// runs in linear time, so length is the only cost left to cap.
const MaxPatternLength = 512

// serialBatchSize is the batch size below which ApplyToBatch does not fan out.
const serialBatchSize = 64

var (
	exactTolerance = decimal.RequireFromString("0.009")
	dateLayout     = "2006-01-02"
)

// CacheObserver receives regex cache hits and misses.
type CacheObserver interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// Matcher evaluates rules. The zero value is ready to use: it compiles
// patterns on every call and evaluates batches serially.
type Matcher struct {
	patterns port.Cache[*regexp.Regexp]
	observer CacheObserver
	workers  int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithPatternCache caches compiled patterns (including failed compiles).
func WithPatternCache(c port.Cache[*regexp.Regexp]) Option {
	return func(m *Matcher) { m.patterns = c }
}

// WithCacheObserver reports pattern cache hits and misses.
func WithCacheObserver(o CacheObserver) Option {
	return func(m *Matcher) { m.observer = o }
}

// WithWorkers sets how many goroutines ApplyToBatch may use.
func WithWorkers(n int) Option {
	return func(m *Matcher) { m.workers = n }
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{workers: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Evaluate reports whether tx satisfies every condition set in match,
// compiling regular expressions without a cache.
func Evaluate(match domain.RuleMatch, tx domain.Transaction) bool {
	return (&Matcher{}).Evaluate(match, tx)
}

// FindFirst returns the action of the first active rule in rules that
// matches tx, or nil. rules must already be sorted.
func FindFirst(rules []domain.Rule, tx domain.Transaction) *domain.RuleMatchResult {
	return (&Matcher{}).FindFirst(rules, tx)
}

// ApplyToBatch sorts rules and returns the match for every transaction index
// that matched. Unmatched indices are absent.
func ApplyToBatch(rules []domain.Rule, txs []domain.Transaction) map[int]domain.RuleMatchResult {
	return (&Matcher{}).ApplyToBatch(rules, txs)
}

// SortRules returns a copy of rules ordered by priority ascending, then
// creation time ascending. Equal keys keep their input order.
func SortRules(rules []domain.Rule) []domain.Rule {
	sorted := make([]domain.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// Evaluate reports whether tx satisfies every condition set in match.
func (m *Matcher) Evaluate(match domain.RuleMatch, tx domain.Transaction) bool {
	text := strings.ToLower(tx.BankText())

	if match.DescriptionContains != "" &&
		!strings.Contains(text, strings.ToLower(match.DescriptionContains)) {
		return false
	}

	if match.DescriptionRegex != "" {
		re := m.compile(match.DescriptionRegex)
		if re == nil || !re.MatchString(text) {
			return false
		}
	}

	abs := tx.Amount.Abs()
	if match.AmountExact != nil && abs.Sub(match.AmountExact.Abs()).Abs().GreaterThan(exactTolerance) {
		return false
	}
	if match.AmountMin != nil && abs.LessThan(*match.AmountMin) {
		return false
	}
	if match.AmountMax != nil && abs.GreaterThan(*match.AmountMax) {
		return false
	}

	if match.DayOfMonth == nil && match.DateAfter == "" && match.DateBefore == "" {
		return true
	}

	date := postedDate(tx)
	if date == "" {
		return false
	}
	if match.DayOfMonth != nil {
		day, ok := dayOfMonth(date)
		if !ok || day != *match.DayOfMonth {
			return false
		}
	}
	if match.DateAfter != "" && date < match.DateAfter {
		return false
	}
	if match.DateBefore != "" && date > match.DateBefore {
		return false
	}
	return true
}

// FindFirst returns the action of the first active rule in rules that
// matches tx, or nil. rules must already be sorted.
func (m *Matcher) FindFirst(rules []domain.Rule, tx domain.Transaction) *domain.RuleMatchResult {
	for i := range rules {
		r := &rules[i]
		if !r.Active {
			continue
		}
		if m.Evaluate(r.Match, tx) {
			return &domain.RuleMatchResult{
				RuleID:              r.ID,
				RuleName:            r.Name,
				CategoryID:          r.Action.CategoryID,
				DescriptionOverride: r.Action.DescriptionOverride,
			}
		}
	}
	return nil
}

// ApplyToBatch sorts rules and returns the match for every transaction index
// that matched. Unmatched indices are absent.
func (m *Matcher) ApplyToBatch(rules []domain.Rule, txs []domain.Transaction) map[int]domain.RuleMatchResult {
	sorted := SortRules(rules)
	found := make([]*domain.RuleMatchResult, len(txs))

	if m.workers <= 1 || len(txs) < serialBatchSize {
		for i := range txs {
			found[i] = m.FindFirst(sorted, txs[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(m.workers)
		for i := range txs {
			i := i
			g.Go(func() error {
				found[i] = m.FindFirst(sorted, txs[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make(map[int]domain.RuleMatchResult)
	for i, r := range found {
		if r != nil {
			out[i] = *r
		}
	}
	return out
}

// compile returns the case-insensitive regexp for pattern, or nil when the
// pattern is invalid or too long.
func (m *Matcher) compile(pattern string) *regexp.Regexp {
	if len(pattern) > MaxPatternLength {
		return nil
	}
	if m.patterns != nil {
		if re, ok := m.patterns.Get(pattern); ok {
			m.observe(true)
			return re
		}
		m.observe(false)
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = nil
	}
	if m.patterns != nil {
		m.patterns.Set(pattern, re)
	}
	return re
}

func (m *Matcher) observe(hit bool) {
	if m.observer == nil {
		return
	}
	if hit {
		m.observer.IncrCacheHit("rule_patterns")
	} else {
		m.observer.IncrCacheMiss("rule_patterns")
	}
}

// postedDate returns the YYYY-MM-DD part of the transaction date.
func postedDate(tx domain.Transaction) string {
	date := strings.TrimSpace(tx.PostedDate())
	if len(date) > len(dateLayout) {
		date = date[:len(dateLayout)]
	}
	return date
}

func dayOfMonth(date string) (int, bool) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, false
	}
	return t.Day(), true
}
