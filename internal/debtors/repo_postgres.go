package debtors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresRepo persists debtors in the debtors table.
//
// Expected schema columns match the db tags on Debtor; due_date is DATE,
// opted_out_at/created_at/updated_at are TIMESTAMPTZ, amount_owed_minor is
// BIGINT.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const debtorColumns = `
id, client_id, external_id, first_name, last_name, phone, email, timezone,
amount_owed_minor, currency, due_date, stage, account_last4,
opted_out, opted_out_at, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, d Debtor) error {
	const q = `
INSERT INTO debtors (` + debtorColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.ClientID, d.ExternalID, d.FirstName, d.LastName, d.Phone,
		d.Email, d.Timezone, d.AmountOwedMinor, d.Currency, d.DueDate,
		d.Stage, d.AccountLast4, d.OptedOut, d.OptedOutAt, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, clientID, debtorID string) (Debtor, error) {
	const q = `
SELECT ` + debtorColumns + `
FROM debtors
WHERE client_id = $1 AND id = $2
`
	return scanDebtor(r.db.QueryRowContext(ctx, q, clientID, debtorID))
}

func (r *PostgresRepo) Update(ctx context.Context, d Debtor) error {
	const q = `
UPDATE debtors SET
  external_id = $3, first_name = $4, last_name = $5, phone = $6, email = $7,
  timezone = $8, amount_owed_minor = $9, currency = $10, due_date = $11,
  stage = $12, account_last4 = $13, opted_out = $14, opted_out_at = $15,
  updated_at = $16
WHERE client_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		d.ClientID, d.ID, d.ExternalID, d.FirstName, d.LastName, d.Phone,
		d.Email, d.Timezone, d.AmountOwedMinor, d.Currency, d.DueDate,
		d.Stage, d.AccountLast4, d.OptedOut, d.OptedOutAt, d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, clientID string, f ListFilter) ([]Debtor, int, error) {
	where := []string{"client_id = $1"}
	args := []any{clientID}

	if f.Stage != "" {
		args = append(args, f.Stage)
		where = append(where, fmt.Sprintf("stage = $%d", len(args)))
	}
	if f.OptedOut != nil {
		args = append(args, *f.OptedOut)
		where = append(where, fmt.Sprintf("opted_out = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQ := "SELECT COUNT(*) FROM debtors WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	listQ := fmt.Sprintf(
		"SELECT %s FROM debtors WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		debtorColumns, cond, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Debtor, 0, f.Limit)
	for rows.Next() {
		d, err := scanDebtor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebtor(row rowScanner) (Debtor, error) {
	var d Debtor
	err := row.Scan(
		&d.ID, &d.ClientID, &d.ExternalID, &d.FirstName, &d.LastName, &d.Phone,
		&d.Email, &d.Timezone, &d.AmountOwedMinor, &d.Currency, &d.DueDate,
		&d.Stage, &d.AccountLast4, &d.OptedOut, &d.OptedOutAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Debtor{}, ErrNotFound
		}
		return Debtor{}, err
	}
	return d, nil
}
