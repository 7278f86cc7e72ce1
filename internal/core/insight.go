package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsightType classifies an insight for display.
type InsightType string

const (
	InsightInfo    InsightType = "info"
	InsightWarning InsightType = "warning"
	InsightSuccess InsightType = "success"
)

// LowBalanceThreshold is the total balance (1000.00) under which a warning fires.
var LowBalanceThreshold = NewMoney(1000_00)

// Insight is a human-readable observation about a summary.
type Insight struct {
	Type    InsightType `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// InsightRule inspects a summary and optionally produces one insight.
type InsightRule func(Summary) (Insight, bool)

// DefaultInsightRules are evaluated in order. Each rule is independent;
// new rules are appended without changing the existing ones.
var DefaultInsightRules = []InsightRule{
	lowBalanceRule,
	averageRevenueRule,
	largestFundRule,
}

// GenerateInsights runs the default rules against a summary.
func GenerateInsights(s Summary) []Insight {
	return EvaluateInsights(s, DefaultInsightRules)
}

// EvaluateInsights runs rules in order and collects every insight produced.
func EvaluateInsights(s Summary, rules []InsightRule) []Insight {
	out := make([]Insight, 0, len(rules))
	for _, rule := range rules {
		if in, ok := rule(s); ok {
			out = append(out, in)
		}
	}
	return out
}

func lowBalanceRule(s Summary) (Insight, bool) {
	if s.TotalBalance.Cents >= LowBalanceThreshold.Cents {
		return Insight{}, false
	}
	return Insight{
		Type:    InsightWarning,
		Title:   "Low balance",
		Message: fmt.Sprintf("Your current balance is %s %s. Consider increasing revenue or reducing expenses.", s.Currency, s.TotalBalance),
	}, true
}

func averageRevenueRule(s Summary) (Insight, bool) {
	if s.MonthlyRevenue.Cents <= 0 {
		return Insight{}, false
	}
	n := s.WindowPayments
	if n < 1 {
		n = 1
	}
	avg := MoneyFromDecimal(s.MonthlyRevenue.Decimal().Div(decimal.NewFromInt(int64(n))))
	return Insight{
		Type:    InsightInfo,
		Title:   "Monthly revenue",
		Message: fmt.Sprintf("Your average revenue per payment is %s %s.", s.Currency, avg),
	}, true
}

func largestFundRule(s Summary) (Insight, bool) {
	if len(s.Funds) == 0 {
		return Insight{}, false
	}
	largest := s.Funds[0]
	for _, f := range s.Funds[1:] {
		if f.Balance.Cents > largest.Balance.Cents {
			largest = f
		}
	}
	return Insight{
		Type:    InsightSuccess,
		Title:   "Largest fund",
		Message: fmt.Sprintf("%s holds %s %s.", largest.DisplayName, s.Currency, largest.Balance),
	}, true
}
