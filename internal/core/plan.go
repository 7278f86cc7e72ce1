package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Share is one entry of an allocation plan: a fund code and its percentage.
type Share struct {
	Code    string
	Percent decimal.Decimal
}

// AllocationPlan is an ordered split of a payment across fund codes.
//
// Invariants enforced by Validate: at least one share, codes non-empty and
// unique, percentages non-negative. The total is not required to be 100;
// Split distributes round(amount × total / 100) and the last share absorbs
// the rounding residual, so a plan totalling 100 always distributes the
// full payment amount.
type AllocationPlan []Share

// DefaultPlan is the fallback split when no explicit plan or active rule exists.
func DefaultPlan() AllocationPlan {
	return AllocationPlan{
		{Code: "reinvestimento", Percent: decimal.NewFromInt(30)},
		{Code: "marketing", Percent: decimal.NewFromInt(20)},
		{Code: "reserva", Percent: decimal.NewFromInt(20)},
		{Code: "inovacao", Percent: decimal.NewFromInt(15)},
		{Code: "pro_labore", Percent: decimal.NewFromInt(10)},
		{Code: "investimentos", Percent: decimal.NewFromInt(5)},
	}
}

// NewPlan builds a plan from ordered code/percent pairs, e.g.
// NewPlan("marketing", 60, "reserva", 40). Percentages may be int, float64
// or string.
func NewPlan(pairs ...any) AllocationPlan {
	plan := make(AllocationPlan, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		code, _ := pairs[i].(string)
		var pct decimal.Decimal
		switch v := pairs[i+1].(type) {
		case int:
			pct = decimal.NewFromInt(int64(v))
		case float64:
			pct = decimal.NewFromFloat(v)
		case string:
			pct = decimal.RequireFromString(v)
		}
		plan = append(plan, Share{Code: code, Percent: pct})
	}
	return plan
}

// Validate checks the plan invariants.
func (p AllocationPlan) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: plan has no shares", ErrInvalidPlan)
	}
	seen := make(map[string]struct{}, len(p))
	for _, s := range p {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return fmt.Errorf("%w: empty fund code", ErrInvalidPlan)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("%w: duplicate fund code %q", ErrInvalidPlan, code)
		}
		seen[code] = struct{}{}
		if s.Percent.IsNegative() {
			return fmt.Errorf("%w: negative percentage %s for %q", ErrInvalidPlan, s.Percent, code)
		}
	}
	return nil
}

// Total returns the sum of all percentages.
func (p AllocationPlan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range p {
		total = total.Add(s.Percent)
	}
	return total
}

// Codes returns the fund codes in plan order.
func (p AllocationPlan) Codes() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Code
	}
	return out
}

// Split computes the per-share amounts for a payment, in plan order.
// Each share is rounded half-up to cents; the rounding residual is applied
// to the last share (in plan order) with a positive percentage that can
// absorb it without going negative.
func (p AllocationPlan) Split(amount Money) ([]Money, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	base := amount.Decimal()
	out := make([]Money, len(p))
	var allocated int64
	for i, s := range p {
		out[i] = MoneyFromDecimal(base.Mul(s.Percent).Div(hundred))
		allocated += out[i].Cents
	}
	target := MoneyFromDecimal(base.Mul(p.Total()).Div(hundred))
	residual := target.Cents - allocated
	if residual == 0 {
		return out, nil
	}
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].Percent.IsPositive() {
			continue
		}
		if out[i].Cents+residual >= 0 {
			out[i].Cents += residual
			return out, nil
		}
	}
	return out, nil
}

// MarshalJSON encodes the plan as a JSON object preserving plan order.
func (p AllocationPlan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Code)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(s.Percent.String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of code → number, keeping key order.
// Non-numeric values are rejected with ErrInvalidPlan.
func (p *AllocationPlan) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected an object of fund code to percentage", ErrInvalidPlan)
	}

	plan := AllocationPlan{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
		code, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("%w: percentage for %q is not a number", ErrInvalidPlan, code)
		}
		pct, err := decimal.NewFromString(num.String())
		if err != nil {
			return fmt.Errorf("%w: percentage for %q: %v", ErrInvalidPlan, code, err)
		}
		plan = append(plan, Share{Code: code, Percent: pct})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	*p = plan
	return nil
}
