package core

// KPIs are extension points for a future model. ROI, LTV, CAC and Runway
// are always reported as zero by this engine.
type KPIs struct {
	TotalRevenue   Money   `json:"total_revenue"`
	ActiveLicenses int     `json:"active_licenses"`
	ROI            float64 `json:"roi"`
	LTV            float64 `json:"ltv"`
	CAC            float64 `json:"cac"`
	Runway         float64 `json:"runway"`
}

// Summary is a reporting snapshot of funds, transactions and payments for
// one scope.
type Summary struct {
	Scope              Scope         `json:"scope"`
	Currency           string        `json:"currency"`
	Funds              []Fund        `json:"funds"`
	TotalBalance       Money         `json:"total_balance"`
	RecentTransactions []Transaction `json:"recent_transactions"`
	PaymentsCount      int           `json:"payments_count"`
	// MonthlyRevenue is the revenue over the most recent payment window
	// (see RevenueWindow); WindowPayments is how many payments it covers.
	MonthlyRevenue Money `json:"monthly_revenue"`
	WindowPayments int   `json:"window_payments"`
	KPIs           KPIs  `json:"kpis"`
}

// RevenueWindow is the number of most recent payments that make up the
// monthly revenue figure.
const RevenueWindow = 12

// DefaultRecentTransactions is how many ledger rows a summary shows.
const DefaultRecentTransactions = 10

// BuildSummary folds raw rows into a Summary. payments must be ordered
// newest first. Empty inputs produce a zero-valued summary.
func BuildSummary(scope Scope, funds []Fund, recent []Transaction, payments []Payment, activeLicenses int) Summary {
	s := Summary{
		Scope:              scope,
		Currency:           DefaultCurrency,
		Funds:              funds,
		RecentTransactions: recent,
		PaymentsCount:      len(payments),
		KPIs:               KPIs{ActiveLicenses: activeLicenses},
	}
	if s.Funds == nil {
		s.Funds = []Fund{}
	}
	if s.RecentTransactions == nil {
		s.RecentTransactions = []Transaction{}
	}
	if len(funds) > 0 && funds[0].Currency != "" {
		s.Currency = funds[0].Currency
	}
	for _, f := range funds {
		s.TotalBalance = s.TotalBalance.Add(f.Balance)
	}
	for i, p := range payments {
		s.KPIs.TotalRevenue = s.KPIs.TotalRevenue.Add(p.Amount)
		if i < RevenueWindow {
			s.MonthlyRevenue = s.MonthlyRevenue.Add(p.Amount)
			s.WindowPayments++
		}
	}
	return s
}

// FundsCount returns the number of funds in the summary.
func (s Summary) FundsCount() int { return len(s.Funds) }
