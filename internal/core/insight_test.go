package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countType(in []Insight, typ InsightType) int {
	n := 0
	for _, i := range in {
		if i.Type == typ {
			n++
		}
	}
	return n
}

func TestGenerateInsightsLowBalance(t *testing.T) {
	s := Summary{Currency: "BRL", TotalBalance: NewMoney(500_00)}
	insights := GenerateInsights(s)

	require.Equal(t, 1, countType(insights, InsightWarning))
	assert.Contains(t, insights[0].Message, "500")
}

func TestGenerateInsightsNoneFire(t *testing.T) {
	s := Summary{Currency: "BRL", TotalBalance: NewMoney(1000_00)}
	assert.Empty(t, GenerateInsights(s))
}

func TestGenerateInsightsAllFire(t *testing.T) {
	s := Summary{
		Currency:       "BRL",
		TotalBalance:   NewMoney(900_00),
		MonthlyRevenue: NewMoney(300_00),
		WindowPayments: 4,
		Funds: []Fund{
			{DisplayName: "Marketing", Balance: NewMoney(400_00)},
			{DisplayName: "Reserva", Balance: NewMoney(400_00)},
			{DisplayName: "Inovacao", Balance: NewMoney(100_00)},
		},
	}
	insights := GenerateInsights(s)
	require.Len(t, insights, 3)

	assert.Equal(t, InsightWarning, insights[0].Type)
	assert.Equal(t, InsightInfo, insights[1].Type)
	assert.Contains(t, insights[1].Message, "75.00")
	assert.Equal(t, InsightSuccess, insights[2].Type)
	assert.True(t, strings.HasPrefix(insights[2].Message, "Marketing"), "ties go to the first fund: %s", insights[2].Message)
	assert.Contains(t, insights[2].Message, "400.00")
}

func TestEvaluateInsightsCustomRule(t *testing.T) {
	extra := func(s Summary) (Insight, bool) {
		return Insight{Type: InsightInfo, Title: "Licenses"}, s.KPIs.ActiveLicenses > 0
	}
	rules := append(append([]InsightRule{}, DefaultInsightRules...), extra)
	s := Summary{TotalBalance: NewMoney(5000_00), KPIs: KPIs{ActiveLicenses: 2}}

	insights := EvaluateInsights(s, rules)
	require.Len(t, insights, 1)
	assert.Equal(t, "Licenses", insights[0].Title)
}

func TestBuildSummary(t *testing.T) {
	funds := []Fund{{Code: "a", Balance: NewMoney(100), Currency: "USD"}, {Code: "b", Balance: NewMoney(250), Currency: "USD"}}
	payments := make([]Payment, 15)
	for i := range payments {
		payments[i] = Payment{Amount: NewMoney(1000)}
	}
	s := BuildSummary(Scope{ProjectID: "p"}, funds, nil, payments, 3)

	assert.Equal(t, int64(350), s.TotalBalance.Cents)
	assert.Equal(t, "USD", s.Currency)
	assert.Equal(t, int64(15000), s.KPIs.TotalRevenue.Cents)
	assert.Equal(t, int64(12000), s.MonthlyRevenue.Cents)
	assert.Equal(t, 12, s.WindowPayments)
	assert.Equal(t, 3, s.KPIs.ActiveLicenses)
	assert.Zero(t, s.KPIs.ROI)
	assert.Zero(t, s.KPIs.Runway)
	assert.NotNil(t, s.RecentTransactions)

	empty := BuildSummary(Scope{AccountID: "acc"}, nil, nil, nil, 0)
	assert.True(t, empty.TotalBalance.IsZero())
	assert.Equal(t, 0, empty.FundsCount())
	assert.Equal(t, DefaultCurrency, empty.Currency)
}
