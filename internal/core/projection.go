package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scenario labels understood when multipliers are applied.
const (
	ScenarioBaseline    = "baseline"
	ScenarioOptimistic  = "optimistic"
	ScenarioPessimistic = "pessimistic"
)

// MaxSimulationMonths caps the projection horizon at one hundred years.
const MaxSimulationMonths = 1200

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// scenarioFactors holds revenue and expense multipliers per scenario.
var scenarioFactors = map[string][2]decimal.Decimal{
	ScenarioBaseline:    {decimal.NewFromInt(1), decimal.NewFromInt(1)},
	ScenarioOptimistic:  {decimal.RequireFromString("1.2"), decimal.RequireFromString("0.9")},
	ScenarioPessimistic: {decimal.RequireFromString("0.8"), decimal.RequireFromString("1.1")},
}

// SimulationParams are the inputs of a projection run.
type SimulationParams struct {
	Scenario         string `json:"scenario"`
	Months           int    `json:"months"`
	RevenuePerMonth  Money  `json:"revenue_per_month"`
	ExpensesPerMonth Money  `json:"expenses_per_month"`
	StartingBalance  Money  `json:"starting_balance"`
	// ApplyScenario scales revenue and expenses by the scenario's factors.
	// When false the label is informational only.
	ApplyScenario bool `json:"apply_scenario,omitempty"`
}

// MonthProjection is one month of a simulation. Runway is nil when
// expenses are zero (unbounded).
type MonthProjection struct {
	Month    int    `json:"month"`
	Revenue  Money  `json:"revenue"`
	Expenses Money  `json:"expenses"`
	Net      Money  `json:"net"`
	Balance  Money  `json:"balance"`
	Runway   *int64 `json:"runway"`
}

// SimulationResult is the month-by-month trajectory. AverageRunway is the
// mean of the per-month runway values, nil when unbounded.
type SimulationResult struct {
	Scenario        string            `json:"scenario"`
	StartingBalance Money             `json:"current_balance"`
	Months          []MonthProjection `json:"simulation"`
	FinalBalance    Money             `json:"final_balance"`
	AverageRunway   *float64          `json:"average_runway"`
}

// Validate checks the simulation inputs.
func (p SimulationParams) Validate() error {
	if p.Months < 1 {
		return fmt.Errorf("%w: months must be at least 1, got %d", ErrInvalidInput, p.Months)
	}
	if p.Months > MaxSimulationMonths {
		return fmt.Errorf("%w: months must be at most %d, got %d", ErrInvalidInput, MaxSimulationMonths, p.Months)
	}
	if p.RevenuePerMonth.IsNegative() {
		return fmt.Errorf("%w: revenue per month cannot be negative", ErrInvalidInput)
	}
	if p.ExpensesPerMonth.IsNegative() {
		return fmt.Errorf("%w: expenses per month cannot be negative", ErrInvalidInput)
	}
	if p.ApplyScenario {
		if _, ok := scenarioFactors[strings.ToLower(p.Scenario)]; !ok {
			return fmt.Errorf("%w: unknown scenario %q", ErrInvalidInput, p.Scenario)
		}
	}
	return nil
}

// Simulate runs a linear projection: a constant monthly net is added to
// the balance each month and runway is floor(balance / expenses).
// Inputs whose trajectory does not fit in int64 cents are rejected with
// ErrInvalidInput.
func Simulate(p SimulationParams) (SimulationResult, error) {
	if err := p.Validate(); err != nil {
		return SimulationResult{}, err
	}

	revenue, expenses := p.RevenuePerMonth, p.ExpensesPerMonth
	if p.ApplyScenario {
		f := scenarioFactors[strings.ToLower(p.Scenario)]
		var err error
		if revenue, err = checkedCents("revenue", revenue.Decimal().Mul(f[0])); err != nil {
			return SimulationResult{}, err
		}
		if expenses, err = checkedCents("expenses", expenses.Decimal().Mul(f[1])); err != nil {
			return SimulationResult{}, err
		}
	}
	net, err := checkedCents("net", revenue.Decimal().Sub(expenses.Decimal()))
	if err != nil {
		return SimulationResult{}, err
	}
	// The balance moves monotonically, so the last month bounds the run.
	final := p.StartingBalance.Decimal().Add(net.Decimal().Mul(decimal.NewFromInt(int64(p.Months))))
	if _, err := checkedCents("final balance", final); err != nil {
		return SimulationResult{}, err
	}

	res := SimulationResult{
		Scenario:        p.Scenario,
		StartingBalance: p.StartingBalance,
		Months:          make([]MonthProjection, 0, p.Months),
	}
	balance := p.StartingBalance
	var runwaySum float64
	for month := 1; month <= p.Months; month++ {
		balance = balance.Add(net)
		mp := MonthProjection{
			Month:    month,
			Revenue:  revenue,
			Expenses: expenses,
			Net:      net,
			Balance:  balance,
		}
		if expenses.Cents > 0 {
			r := floorDiv(balance.Cents, expenses.Cents)
			mp.Runway = &r
			runwaySum += float64(r)
		}
		res.Months = append(res.Months, mp)
	}
	res.FinalBalance = balance
	if expenses.Cents > 0 {
		avg := runwaySum / float64(p.Months)
		res.AverageRunway = &avg
	}
	return res, nil
}

// checkedCents converts a major-unit amount to Money, rejecting values
// outside the int64 cents range.
func checkedCents(what string, d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Mul(hundred)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, what)
	}
	return Money{Cents: cents.IntPart()}, nil
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
