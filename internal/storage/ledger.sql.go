package storage

import "context"

const fundColumns = `id, project_id, code, display_name, balance_cents, currency, created_at`

const transactionColumns = `id, fund_id, project_id, payment_id, type, amount_cents, currency, reference, created_at`

const paymentColumns = `id, project_id, amount_cents, currency, created_at`

const ownedProjects = `SELECT id FROM projects WHERE owner_id = ?`

const insertFundIfAbsent = `-- name: InsertFundIfAbsent :exec
INSERT INTO funds (id, project_id, code, display_name, balance_cents, currency, created_at)
VALUES (?, ?, ?, ?, 0, ?, ?)
ON CONFLICT (project_id, code) DO NOTHING
`

type InsertFundIfAbsentParams struct {
	ID          string
	ProjectID   string
	Code        string
	DisplayName string
	Currency    string
	CreatedAt   string
}

func (q *Queries) InsertFundIfAbsent(ctx context.Context, arg InsertFundIfAbsentParams) error {
	_, err := q.db.ExecContext(ctx, insertFundIfAbsent,
		arg.ID,
		arg.ProjectID,
		arg.Code,
		arg.DisplayName,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const getFundByCode = `-- name: GetFundByCode :one
SELECT ` + fundColumns + ` FROM funds WHERE project_id = ? AND code = ?
`

func (q *Queries) GetFundByCode(ctx context.Context, projectID, code string) (Fund, error) {
	row := q.db.QueryRowContext(ctx, getFundByCode, projectID, code)
	var i Fund
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Code,
		&i.DisplayName,
		&i.BalanceCents,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const incrementFundBalance = `-- name: IncrementFundBalance :one
UPDATE funds SET balance_cents = balance_cents + ? WHERE id = ?
RETURNING balance_cents
`

func (q *Queries) IncrementFundBalance(ctx context.Context, deltaCents int64, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, incrementFundBalance, deltaCents, id)
	var balance int64
	err := row.Scan(&balance)
	return balance, err
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.FundID,
		arg.ProjectID,
		arg.PaymentID,
		arg.Type,
		arg.AmountCents,
		arg.Currency,
		arg.Reference,
		arg.CreatedAt,
	)
	return err
}

const listFundsByProject = `-- name: ListFundsByProject :many
SELECT ` + fundColumns + ` FROM funds WHERE project_id = ? ORDER BY project_id, code
`

func (q *Queries) ListFundsByProject(ctx context.Context, projectID string) ([]Fund, error) {
	return q.queryFunds(ctx, listFundsByProject, projectID)
}

const listFundsByOwner = `-- name: ListFundsByOwner :many
SELECT ` + fundColumns + ` FROM funds WHERE project_id IN (` + ownedProjects + `) ORDER BY project_id, code
`

func (q *Queries) ListFundsByOwner(ctx context.Context, ownerID string) ([]Fund, error) {
	return q.queryFunds(ctx, listFundsByOwner, ownerID)
}

func (q *Queries) queryFunds(ctx context.Context, query string, args ...interface{}) ([]Fund, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Fund{}
	for rows.Next() {
		var i Fund
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.Code,
			&i.DisplayName,
			&i.BalanceCents,
			&i.Currency,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRecentTransactionsByProject = `-- name: ListRecentTransactionsByProject :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE project_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`

func (q *Queries) ListRecentTransactionsByProject(ctx context.Context, projectID string, limit int64) ([]Transaction, error) {
	return q.queryTransactions(ctx, listRecentTransactionsByProject, projectID, limit)
}

const listRecentTransactionsByOwner = `-- name: ListRecentTransactionsByOwner :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE project_id IN (` + ownedProjects + `)
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`

func (q *Queries) ListRecentTransactionsByOwner(ctx context.Context, ownerID string, limit int64) ([]Transaction, error) {
	return q.queryTransactions(ctx, listRecentTransactionsByOwner, ownerID, limit)
}

const listTransactionsByPayment = `-- name: ListTransactionsByPayment :many
SELECT ` + transactionColumns + ` FROM transactions WHERE payment_id = ? ORDER BY rowid
`

func (q *Queries) ListTransactionsByPayment(ctx context.Context, paymentID string) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByPayment, paymentID)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Transaction{}
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.FundID,
			&i.ProjectID,
			&i.PaymentID,
			&i.Type,
			&i.AmountCents,
			&i.Currency,
			&i.Reference,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPayment = `-- name: GetPayment :one
SELECT ` + paymentColumns + ` FROM payments WHERE id = ?
`

func (q *Queries) GetPayment(ctx context.Context, id string) (Payment, error) {
	row := q.db.QueryRowContext(ctx, getPayment, id)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.AmountCents,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}

const listPaymentsByProject = `-- name: ListPaymentsByProject :many
SELECT ` + paymentColumns + ` FROM payments WHERE project_id = ? ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListPaymentsByProject(ctx context.Context, projectID string) ([]Payment, error) {
	return q.queryPayments(ctx, listPaymentsByProject, projectID)
}

const listPaymentsByOwner = `-- name: ListPaymentsByOwner :many
SELECT ` + paymentColumns + ` FROM payments WHERE project_id IN (` + ownedProjects + `) ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListPaymentsByOwner(ctx context.Context, ownerID string) ([]Payment, error) {
	return q.queryPayments(ctx, listPaymentsByOwner, ownerID)
}

func (q *Queries) queryPayments(ctx context.Context, query string, args ...interface{}) ([]Payment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.AmountCents,
			&i.Currency,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countActiveLicensesByProject = `-- name: CountActiveLicensesByProject :one
SELECT COUNT(*) FROM licenses WHERE project_id = ? AND status = 'active'
`

func (q *Queries) CountActiveLicensesByProject(ctx context.Context, projectID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActiveLicensesByProject, projectID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countActiveLicensesByOwner = `-- name: CountActiveLicensesByOwner :one
SELECT COUNT(*) FROM licenses WHERE project_id IN (` + ownedProjects + `) AND status = 'active'
`

func (q *Queries) CountActiveLicensesByOwner(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countActiveLicensesByOwner, ownerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getActiveRule = `-- name: GetActiveRule :one
SELECT id, project_id, allocation, active, created_at FROM allocation_rules
WHERE project_id = ? AND active = 1
`

func (q *Queries) GetActiveRule(ctx context.Context, projectID string) (AllocationRule, error) {
	row := q.db.QueryRowContext(ctx, getActiveRule, projectID)
	var i AllocationRule
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Allocation,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const ledgerSum = `COALESCE((
    SELECT SUM(CASE WHEN t.type = 'credit' THEN t.amount_cents ELSE -t.amount_cents END)
    FROM transactions t WHERE t.fund_id = funds.id
), 0)`

const listLedgerDrifts = `-- name: ListLedgerDrifts :many
SELECT id, project_id, code, balance_cents, ledger_cents FROM (
    SELECT id, project_id, code, balance_cents, ` + ledgerSum + ` AS ledger_cents
    FROM funds
)
WHERE balance_cents != ledger_cents
ORDER BY project_id, code
`

func (q *Queries) ListLedgerDrifts(ctx context.Context) ([]LedgerDrift, error) {
	rows, err := q.db.QueryContext(ctx, listLedgerDrifts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LedgerDrift{}
	for rows.Next() {
		var i LedgerDrift
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.Code,
			&i.BalanceCents,
			&i.LedgerCents,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const recomputeFundBalance = `-- name: RecomputeFundBalance :one
UPDATE funds SET balance_cents = ` + ledgerSum + ` WHERE id = ?
RETURNING balance_cents
`

func (q *Queries) RecomputeFundBalance(ctx context.Context, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, recomputeFundBalance, id)
	var balance int64
	err := row.Scan(&balance)
	return balance, err
}

const getMirroredCount = `-- name: GetMirroredCount :one
SELECT mirrored_count FROM ledger_mirror WHERE payment_id = ?
`

func (q *Queries) GetMirroredCount(ctx context.Context, paymentID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getMirroredCount, paymentID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const upsertMirror = `-- name: UpsertMirror :exec
INSERT INTO ledger_mirror (payment_id, sheets_ref, mirrored_count, mirrored_at) VALUES (?, ?, ?, ?)
ON CONFLICT (payment_id) DO UPDATE SET
    sheets_ref = excluded.sheets_ref,
    mirrored_count = excluded.mirrored_count,
    mirrored_at = excluded.mirrored_at
`

func (q *Queries) UpsertMirror(ctx context.Context, paymentID, ref string, count int64, mirroredAt string) error {
	_, err := q.db.ExecContext(ctx, upsertMirror, paymentID, ref, count, mirroredAt)
	return err
}

const upsertProject = `-- name: UpsertProject :exec
INSERT INTO projects (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET owner_id = excluded.owner_id, name = excluded.name
`

func (q *Queries) UpsertProject(ctx context.Context, id, ownerID, name, createdAt string) error {
	_, err := q.db.ExecContext(ctx, upsertProject, id, ownerID, name, createdAt)
	return err
}

const insertPayment = `-- name: InsertPayment :exec
INSERT INTO payments (` + paymentColumns + `) VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) InsertPayment(ctx context.Context, arg Payment) error {
	_, err := q.db.ExecContext(ctx, insertPayment,
		arg.ID,
		arg.ProjectID,
		arg.AmountCents,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const insertLicense = `-- name: InsertLicense :exec
INSERT INTO licenses (id, payment_id, project_id, status) VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertLicense(ctx context.Context, id, paymentID, projectID, status string) error {
	_, err := q.db.ExecContext(ctx, insertLicense, id, paymentID, projectID, status)
	return err
}

const deactivateRules = `-- name: DeactivateRules :exec
UPDATE allocation_rules SET active = 0 WHERE project_id = ? AND active = 1
`

func (q *Queries) DeactivateRules(ctx context.Context, projectID string) error {
	_, err := q.db.ExecContext(ctx, deactivateRules, projectID)
	return err
}

const insertRule = `-- name: InsertRule :exec
INSERT INTO allocation_rules (project_id, allocation, active, created_at) VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertRule(ctx context.Context, projectID, allocation string, active bool, createdAt string) error {
	_, err := q.db.ExecContext(ctx, insertRule, projectID, allocation, active, createdAt)
	return err
}
