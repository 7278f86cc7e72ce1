package storage

type Fund struct {
	ID           string
	ProjectID    string
	Code         string
	DisplayName  string
	BalanceCents int64
	Currency     string
	CreatedAt    string
}

type Transaction struct {
	ID          string
	FundID      string
	ProjectID   string
	PaymentID   string
	Type        string
	AmountCents int64
	Currency    string
	Reference   string
	CreatedAt   string
}

type Payment struct {
	ID          string
	ProjectID   string
	AmountCents int64
	Currency    string
	CreatedAt   string
}

type AllocationRule struct {
	ID         int64
	ProjectID  string
	Allocation string
	Active     bool
	CreatedAt  string
}

type LedgerDrift struct {
	ID           string
	ProjectID    string
	Code         string
	BalanceCents int64
	LedgerCents  int64
}
