package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresRepo persists campaigns in the campaigns table. DebtorIDs are
// stored as a JSON text column; they are only ever read back whole.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const campaignColumns = `
id, client_id, name, status, debtor_ids, provider_batch_id, skipped_debtors,
created_at, started_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Campaign) error {
	ids, err := json.Marshal(c.DebtorIDs)
	if err != nil {
		return fmt.Errorf("encode debtor ids: %w", err)
	}
	const q = `
INSERT INTO campaigns (` + campaignColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err = r.db.ExecContext(ctx, q,
		c.ID, c.ClientID, c.Name, c.Status, string(ids), c.ProviderBatchID,
		c.SkippedDebtors, c.CreatedAt, c.StartedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, clientID, campaignID string) (Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE client_id = $1 AND id = $2
`
	return scanCampaign(r.db.QueryRowContext(ctx, q, clientID, campaignID))
}

func (r *PostgresRepo) Update(ctx context.Context, c Campaign) error {
	const q = `
UPDATE campaigns SET
  status = $3, provider_batch_id = $4, skipped_debtors = $5,
  started_at = $6, updated_at = $7
WHERE client_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.ClientID, c.ID, c.Status, c.ProviderBatchID, c.SkippedDebtors,
		c.StartedAt, c.UpdatedAt,
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

func (r *PostgresRepo) List(ctx context.Context, clientID string) ([]Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns
WHERE client_id = $1
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var ids string
	err := row.Scan(
		&c.ID, &c.ClientID, &c.Name, &c.Status, &ids, &c.ProviderBatchID,
		&c.SkippedDebtors, &c.CreatedAt, &c.StartedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	if err := json.Unmarshal([]byte(ids), &c.DebtorIDs); err != nil {
		return Campaign{}, fmt.Errorf("decode debtor ids: %w", err)
	}
	return c, nil
}
