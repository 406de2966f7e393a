package repository

import (
	"context"
	"database/sql"

	"github.com/sqlc-dev/pqtype"
)

const tierColumns = `tier_id, display_name, limits, access, features, price, updated_at`

func scanTierSetting(row *sql.Row) (TierSetting, error) {
	var t TierSetting
	err := row.Scan(&t.TierID, &t.DisplayName, &t.Limits, &t.Access, &t.Features, &t.Price, &t.UpdatedAt)
	return t, err
}

const getTierSetting = `SELECT ` + tierColumns + ` FROM tier_settings WHERE tier_id = $1`

// GetTierSetting fetches one tier's settings bundle.
func (q *Queries) GetTierSetting(ctx context.Context, tierID string) (TierSetting, error) {
	return scanTierSetting(q.db.QueryRowContext(ctx, getTierSetting, tierID))
}

const listTierSettings = `SELECT ` + tierColumns + ` FROM tier_settings ORDER BY tier_id`

// ListTierSettings fetches every tier's settings bundle.
func (q *Queries) ListTierSettings(ctx context.Context) ([]TierSetting, error) {
	rows, err := q.db.QueryContext(ctx, listTierSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TierSetting
	for rows.Next() {
		var t TierSetting
		if err := rows.Scan(&t.TierID, &t.DisplayName, &t.Limits, &t.Access, &t.Features, &t.Price, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Upsert replaces the whole bundle in a single statement, so a concurrent
// reader sees either the previous bundle or the new one, never a mix.
const upsertTierSetting = `
INSERT INTO tier_settings (tier_id, display_name, limits, access, features, price, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (tier_id) DO UPDATE
SET display_name = EXCLUDED.display_name,
    limits = EXCLUDED.limits,
    access = EXCLUDED.access,
    features = EXCLUDED.features,
    price = EXCLUDED.price,
    updated_at = now()`

// UpsertTierSettingParams holds one tier's full replacement bundle.
type UpsertTierSettingParams struct {
	TierID      string
	DisplayName string
	Limits      pqtype.NullRawMessage
	Access      pqtype.NullRawMessage
	Features    pqtype.NullRawMessage
	Price       pqtype.NullRawMessage
}

// UpsertTierSetting atomically replaces a tier's settings bundle.
func (q *Queries) UpsertTierSetting(ctx context.Context, arg UpsertTierSettingParams) error {
	_, err := q.db.ExecContext(ctx, upsertTierSetting,
		arg.TierID, arg.DisplayName, arg.Limits, arg.Access, arg.Features, arg.Price)
	return err
}
