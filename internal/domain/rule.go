package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Categorization rules
// ============================================================

// Rule is a prioritized predicate/action pair. Lower Priority wins; ties
// go to the earlier CreatedAt.
type Rule struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id,omitempty"`
	Name      string     `json:"name"`
	Match     RuleMatch  `json:"match"`
	Action    RuleAction `json:"action"`
	Active    bool       `json:"active"`
	Priority  int        `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
}

// RuleMatch is a conjunction; zero-valued fields are absent conditions.
type RuleMatch struct {
	DescriptionContains string           `json:"description_contains,omitempty"`
	DescriptionRegex    string           `json:"description_regex,omitempty"`
	AmountExact         *decimal.Decimal `json:"amount_exact,omitempty"`
	AmountMin           *decimal.Decimal `json:"amount_min,omitempty"`
	AmountMax           *decimal.Decimal `json:"amount_max,omitempty"`
	DayOfMonth          *int             `json:"day_of_month,omitempty"`
	DateAfter           string           `json:"date_after,omitempty"`
	DateBefore          string           `json:"date_before,omitempty"`
}

// RuleAction is what a matching rule assigns.
type RuleAction struct {
	CategoryID          string `json:"category_id"`
	DescriptionOverride string `json:"description_override,omitempty"`
}

// RuleMatchResult reports which rule matched and what it assigns.
type RuleMatchResult struct {
	RuleID              string `json:"rule_id"`
	RuleName            string `json:"rule_name"`
	CategoryID          string `json:"category_id"`
	DescriptionOverride string `json:"description_override,omitempty"`
}
