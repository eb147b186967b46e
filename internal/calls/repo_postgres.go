package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PostgresRepo persists calls in the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `
id, client_id, debtor_id, campaign_id, conversation_id, provider_call_sid,
status, outcome, final_state, from_number, to_number,
initiated_at, ended_at, duration_seconds,
transcript, transcript_json, ai_summary, extraction,
created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.ClientID, c.DebtorID, c.CampaignID, c.ConversationID, c.ProviderCallSID,
		c.Status, c.Outcome, c.FinalState, c.FromNumber, c.ToNumber,
		c.InitiatedAt, c.EndedAt, c.DurationSeconds,
		c.Transcript, c.TranscriptJSON, c.AISummary, c.Extraction,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, clientID, callID string) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE client_id = $1 AND id = $2
`
	return scanCall(r.db.QueryRowContext(ctx, q, clientID, callID))
}

func (r *PostgresRepo) GetByID(ctx context.Context, callID string) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE id = $1
`
	return scanCall(r.db.QueryRowContext(ctx, q, callID))
}

func (r *PostgresRepo) List(ctx context.Context, clientID string, f ListFilter) ([]Call, int, error) {
	f = f.withDefaults()

	where := []string{"client_id = $1"}
	args := []any{clientID}

	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Outcome != "" {
		add("outcome", f.Outcome)
	}
	if f.DebtorID != "" {
		add("debtor_id", f.DebtorID)
	}
	if f.CampaignID != "" {
		add("campaign_id", f.CampaignID)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	listQ := fmt.Sprintf(
		"SELECT %s FROM calls WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		callColumns, cond, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Call, 0, f.Limit)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) MarkDispatched(ctx context.Context, callID, conversationID, providerSID string, now time.Time) error {
	const q = `
UPDATE calls SET status = 'ringing', conversation_id = $2, provider_call_sid = $3, updated_at = $4
WHERE id = $1
`
	return r.exec(ctx, q, callID, conversationID, providerSID, now)
}

func (r *PostgresRepo) Complete(ctx context.Context, callID string, res CallCompletion, endedAt *time.Time, now time.Time) error {
	const q = `
UPDATE calls SET
  status = 'completed', duration_seconds = $2, transcript = $3,
  transcript_json = $4, ai_summary = $5, ended_at = $6, updated_at = $7
WHERE id = $1
`
	return r.exec(ctx, q, callID, res.DurationSeconds, res.Transcript, res.TranscriptJSON, res.AISummary, endedAt, now)
}

func (r *PostgresRepo) Fail(ctx context.Context, callID string, now time.Time) error {
	const q = `UPDATE calls SET status = 'failed', updated_at = $2 WHERE id = $1`
	return r.exec(ctx, q, callID, now)
}

func (r *PostgresRepo) FailIfUnresolved(ctx context.Context, callID string, now time.Time) (bool, error) {
	const q = `
UPDATE calls SET status = 'failed', updated_at = $2
WHERE id = $1 AND status NOT IN ('completed', 'failed')
`
	res, err := r.db.ExecContext(ctx, q, callID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Either already terminal or missing; distinguish for the caller.
		var exists bool
		if err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM calls WHERE id = $1)", callID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *PostgresRepo) AttachExtraction(ctx context.Context, callID string, outcome CallOutcome, finalState ConversationState, extraction string, now time.Time) error {
	const q = `
UPDATE calls SET outcome = $2, final_state = $3, extraction = $4, updated_at = $5
WHERE id = $1
`
	return r.exec(ctx, q, callID, outcome, finalState, extraction, now)
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID, &c.ClientID, &c.DebtorID, &c.CampaignID, &c.ConversationID, &c.ProviderCallSID,
		&c.Status, &c.Outcome, &c.FinalState, &c.FromNumber, &c.ToNumber,
		&c.InitiatedAt, &c.EndedAt, &c.DurationSeconds,
		&c.Transcript, &c.TranscriptJSON, &c.AISummary, &c.Extraction,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}
