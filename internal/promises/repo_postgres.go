package promises

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"collections-platform/pkg/utils"
)

// PostgresRepo persists promises in the payment_promises table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const promiseColumns = `
id, client_id, debtor_id, call_id, amount_minor, currency, promise_date,
status, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, p Promise) error {
	const q = `
INSERT INTO payment_promises (` + promiseColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.ClientID, p.DebtorID, p.CallID, p.AmountMinor, p.Currency,
		p.PromiseDate, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, clientID, promiseID string) (Promise, error) {
	const q = `
SELECT ` + promiseColumns + `
FROM payment_promises
WHERE client_id = $1 AND id = $2
`
	return scanPromise(r.db.QueryRowContext(ctx, q, clientID, promiseID))
}

func (r *PostgresRepo) Update(ctx context.Context, p Promise) error {
	const q = `
UPDATE payment_promises SET status = $3, updated_at = $4
WHERE client_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, p.ClientID, p.ID, p.Status, p.UpdatedAt)
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

func (r *PostgresRepo) List(ctx context.Context, clientID string, f ListFilter) ([]Promise, int, error) {
	where := []string{"client_id = $1"}
	args := []any{clientID}

	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.DebtorID != "" {
		args = append(args, f.DebtorID)
		where = append(where, fmt.Sprintf("debtor_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	// Count and page inside one read-only transaction so the total matches
	// the page.
	var total int
	var out []Promise
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payment_promises WHERE "+cond, args...).Scan(&total); err != nil {
			return err
		}

		args = append(args, f.Limit, f.Offset)
		listQ := fmt.Sprintf(
			"SELECT %s FROM payment_promises WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
			promiseColumns, cond, len(args)-1, len(args),
		)
		rows, err := tx.QueryContext(ctx, listQ, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Promise, 0, f.Limit)
		for rows.Next() {
			p, err := scanPromise(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) PendingSummary(ctx context.Context, clientID string) (PendingSummary, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(amount_minor), 0)
FROM payment_promises
WHERE client_id = $1 AND status = 'pending'
`
	var out PendingSummary
	err := r.db.QueryRowContext(ctx, q, clientID).Scan(&out.Count, &out.AmountMinor)
	return out, err
}

func (r *PostgresRepo) MarkOverdue(ctx context.Context, clientID string, before, now time.Time) (int, error) {
	const q = `
UPDATE payment_promises SET status = 'overdue', updated_at = $3
WHERE client_id = $1 AND status = 'pending' AND promise_date < $2
`
	res, err := r.db.ExecContext(ctx, q, clientID, before, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromise(row rowScanner) (Promise, error) {
	var p Promise
	err := row.Scan(
		&p.ID, &p.ClientID, &p.DebtorID, &p.CallID, &p.AmountMinor, &p.Currency,
		&p.PromiseDate, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Promise{}, ErrNotFound
		}
		return Promise{}, err
	}
	return p, nil
}
