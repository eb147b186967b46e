package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists events in the audit_events table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, client_id, type, actor_id, subject_id, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.ClientID, e.Type, e.ActorID, e.SubjectID, e.Detail, e.CreatedAt)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, clientID string, limit int) ([]Event, error) {
	const q = `
SELECT id, client_id, type, actor_id, subject_id, detail, created_at
FROM audit_events
WHERE client_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Type, &e.ActorID, &e.SubjectID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
