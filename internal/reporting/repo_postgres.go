package reporting

import (
	"context"
	"database/sql"
	"time"

	"collections-platform/internal/calls"
)

// PostgresRepo runs the dashboard aggregates directly in SQL.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) DebtorTotals(ctx context.Context, clientID string) (DebtorTotals, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE opted_out),
       COALESCE(SUM(amount_owed_minor), 0)
FROM debtors
WHERE client_id = $1
`
	var out DebtorTotals
	err := r.db.QueryRowContext(ctx, q, clientID).Scan(&out.Count, &out.OptedOut, &out.AmountOwedMinor)
	return out, err
}

func (r *PostgresRepo) CallCounts(ctx context.Context, clientID string, since time.Time) (CallCounts, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'completed'),
       COUNT(*) FILTER (WHERE status = 'failed')
FROM calls
WHERE client_id = $1 AND initiated_at >= $2
`
	var out CallCounts
	err := r.db.QueryRowContext(ctx, q, clientID, since).Scan(&out.Total, &out.Completed, &out.Failed)
	return out, err
}

func (r *PostgresRepo) OutcomeCounts(ctx context.Context, clientID string) (map[calls.CallOutcome]int, error) {
	const q = `
SELECT outcome, COUNT(*)
FROM calls
WHERE client_id = $1 AND outcome <> ''
GROUP BY outcome
`
	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[calls.CallOutcome]int)
	for rows.Next() {
		var outcome calls.CallOutcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		out[outcome] = count
	}
	return out, rows.Err()
}
