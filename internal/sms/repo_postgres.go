package sms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresRepo persists messages in the sms_messages table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const messageColumns = `
id, client_id, debtor_id, call_id, to_number, from_number, body, template,
status, provider_sid, error, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, m Message) error {
	const q = `
INSERT INTO sms_messages (` + messageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.ClientID, m.DebtorID, m.CallID, m.ToNumber, m.FromNumber,
		m.Body, m.Template, m.Status, m.ProviderSID, m.Error, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, m Message) error {
	const q = `
UPDATE sms_messages SET status = $2, provider_sid = $3, error = $4, updated_at = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, m.ID, m.Status, m.ProviderSID, m.Error, m.UpdatedAt)
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

func (r *PostgresRepo) GetByProviderSID(ctx context.Context, providerSID string) (Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM sms_messages
WHERE provider_sid = $1
`
	return scanMessage(r.db.QueryRowContext(ctx, q, providerSID))
}

func (r *PostgresRepo) List(ctx context.Context, clientID string, f ListFilter) ([]Message, int, error) {
	where := []string{"client_id = $1"}
	args := []any{clientID}

	if f.DebtorID != "" {
		args = append(args, f.DebtorID)
		where = append(where, fmt.Sprintf("debtor_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sms_messages WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	listQ := fmt.Sprintf(
		"SELECT %s FROM sms_messages WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		messageColumns, cond, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Message, 0, f.Limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID, &m.ClientID, &m.DebtorID, &m.CallID, &m.ToNumber, &m.FromNumber,
		&m.Body, &m.Template, &m.Status, &m.ProviderSID, &m.Error, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}
