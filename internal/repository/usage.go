package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const usageColumns = `user_id, books_offline, books_favorites, nashids_offline, nashids_favorites, reset_date`

func scanUsage(row *sql.Row) (UsageCounter, error) {
	var c UsageCounter
	err := row.Scan(&c.UserID, &c.BooksOffline, &c.BooksFavorites, &c.NashidsOffline, &c.NashidsFavorites, &c.ResetDate)
	return c, err
}

const getUsageCounters = `SELECT ` + usageColumns + ` FROM usage_counters WHERE user_id = $1`

// GetUsageCounters fetches one user's counters.
func (q *Queries) GetUsageCounters(ctx context.Context, userID uuid.UUID) (UsageCounter, error) {
	return scanUsage(q.db.QueryRowContext(ctx, getUsageCounters, userID))
}

const createUsageCounters = `
INSERT INTO usage_counters (user_id, reset_date)
VALUES ($1, now())
ON CONFLICT (user_id) DO NOTHING`

// CreateUsageCounters creates the zeroed counter row for a new user.
// Idempotent: an existing row is left untouched.
func (q *Queries) CreateUsageCounters(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, createUsageCounters, userID)
	return err
}

// Counter adjustments are atomic single-column updates with a floor at
// zero, one statement per {content type × kind} column.

const adjustBooksOffline = `
UPDATE usage_counters SET books_offline = GREATEST(books_offline + $2, 0) WHERE user_id = $1
RETURNING ` + usageColumns

// AdjustBooksOffline applies a delta to the books offline counter.
func (q *Queries) AdjustBooksOffline(ctx context.Context, userID uuid.UUID, delta int32) (UsageCounter, error) {
	return scanUsage(q.db.QueryRowContext(ctx, adjustBooksOffline, userID, delta))
}

const adjustBooksFavorites = `
UPDATE usage_counters SET books_favorites = GREATEST(books_favorites + $2, 0) WHERE user_id = $1
RETURNING ` + usageColumns

// AdjustBooksFavorites applies a delta to the books favorites counter.
func (q *Queries) AdjustBooksFavorites(ctx context.Context, userID uuid.UUID, delta int32) (UsageCounter, error) {
	return scanUsage(q.db.QueryRowContext(ctx, adjustBooksFavorites, userID, delta))
}

const adjustNashidsOffline = `
UPDATE usage_counters SET nashids_offline = GREATEST(nashids_offline + $2, 0) WHERE user_id = $1
RETURNING ` + usageColumns

// AdjustNashidsOffline applies a delta to the nashids offline counter.
func (q *Queries) AdjustNashidsOffline(ctx context.Context, userID uuid.UUID, delta int32) (UsageCounter, error) {
	return scanUsage(q.db.QueryRowContext(ctx, adjustNashidsOffline, userID, delta))
}

const adjustNashidsFavorites = `
UPDATE usage_counters SET nashids_favorites = GREATEST(nashids_favorites + $2, 0) WHERE user_id = $1
RETURNING ` + usageColumns

// AdjustNashidsFavorites applies a delta to the nashids favorites counter.
func (q *Queries) AdjustNashidsFavorites(ctx context.Context, userID uuid.UUID, delta int32) (UsageCounter, error) {
	return scanUsage(q.db.QueryRowContext(ctx, adjustNashidsFavorites, userID, delta))
}

const resetMonthlyUsage = `
UPDATE usage_counters
SET books_offline = 0, nashids_offline = 0, reset_date = $2
WHERE user_id = $1`

// ResetMonthlyUsage zeroes the offline counters and stamps the reset date.
// Favorites counters are not touched.
func (q *Queries) ResetMonthlyUsage(ctx context.Context, userID uuid.UUID, resetDate time.Time) error {
	_, err := q.db.ExecContext(ctx, resetMonthlyUsage, userID, resetDate)
	return err
}

const listUsageDueForReset = `
SELECT ` + usageColumns + `
FROM usage_counters
WHERE date_trunc('month', reset_date) < date_trunc('month', $1::timestamptz)
LIMIT $2`

// ListUsageDueForReset returns counter rows whose reset date lies in an
// earlier calendar month than now.
func (q *Queries) ListUsageDueForReset(ctx context.Context, now time.Time, limit int32) ([]UsageCounter, error) {
	rows, err := q.db.QueryContext(ctx, listUsageDueForReset, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageCounter
	for rows.Next() {
		var c UsageCounter
		if err := rows.Scan(&c.UserID, &c.BooksOffline, &c.BooksFavorites, &c.NashidsOffline, &c.NashidsFavorites, &c.ResetDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// Subscriptions, history, trials
// =============================================================================

const getSubscription = `
SELECT user_id, tier, expires_at, is_active, started_at
FROM subscriptions WHERE user_id = $1`

// GetSubscription fetches one user's subscription row.
func (q *Queries) GetSubscription(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	var s Subscription
	err := q.db.QueryRowContext(ctx, getSubscription, userID).
		Scan(&s.UserID, &s.Tier, &s.ExpiresAt, &s.IsActive, &s.StartedAt)
	return s, err
}

const upsertSubscription = `
INSERT INTO subscriptions (user_id, tier, expires_at, is_active, started_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id) DO UPDATE
SET tier = EXCLUDED.tier,
    expires_at = EXCLUDED.expires_at,
    is_active = EXCLUDED.is_active,
    started_at = now()`

// UpsertSubscriptionParams holds a user's new tier assignment.
type UpsertSubscriptionParams struct {
	UserID    uuid.UUID
	Tier      string
	ExpiresAt sql.NullTime
	IsActive  bool
}

// UpsertSubscription replaces a user's current tier assignment.
func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSubscription, arg.UserID, arg.Tier, arg.ExpiresAt, arg.IsActive)
	return err
}

const appendSubscriptionHistory = `
INSERT INTO subscription_history (id, user_id, from_tier, to_tier, source)
VALUES ($1, $2, $3, $4, $5)`

// AppendSubscriptionHistoryParams holds one append-only history entry.
type AppendSubscriptionHistoryParams struct {
	UserID   uuid.UUID
	FromTier string
	ToTier   string
	Source   string
}

// AppendSubscriptionHistory records a tier change. History rows are never
// updated or deleted.
func (q *Queries) AppendSubscriptionHistory(ctx context.Context, arg AppendSubscriptionHistoryParams) error {
	_, err := q.db.ExecContext(ctx, appendSubscriptionHistory,
		uuid.New(), arg.UserID, arg.FromTier, arg.ToTier, arg.Source)
	return err
}

const listSubscriptionHistory = `
SELECT id, user_id, from_tier, to_tier, source, changed_at
FROM subscription_history
WHERE user_id = $1
ORDER BY changed_at DESC`

// ListSubscriptionHistory returns a user's tier changes, newest first.
func (q *Queries) ListSubscriptionHistory(ctx context.Context, userID uuid.UUID) ([]SubscriptionChange, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptionHistory, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubscriptionChange
	for rows.Next() {
		var c SubscriptionChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.FromTier, &c.ToTier, &c.Source, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const getTrial = `SELECT user_id, used, tier, expires_at FROM trials WHERE user_id = $1`

// GetTrial fetches one user's trial state.
func (q *Queries) GetTrial(ctx context.Context, userID uuid.UUID) (Trial, error) {
	var t Trial
	err := q.db.QueryRowContext(ctx, getTrial, userID).Scan(&t.UserID, &t.Used, &t.Tier, &t.ExpiresAt)
	return t, err
}

// The used flag is write-once: the insert fails on conflict when a trial
// row already exists, which is how the one-trial-per-user rule is held.
const markTrialUsed = `
INSERT INTO trials (user_id, used, tier, expires_at)
VALUES ($1, TRUE, $2, $3)`

// MarkTrialUsedParams records trial consumption.
type MarkTrialUsedParams struct {
	UserID    uuid.UUID
	Tier      string
	ExpiresAt sql.NullTime
}

// MarkTrialUsed records that the user consumed their one trial.
func (q *Queries) MarkTrialUsed(ctx context.Context, arg MarkTrialUsedParams) error {
	_, err := q.db.ExecContext(ctx, markTrialUsed, arg.UserID, arg.Tier, arg.ExpiresAt)
	return err
}

const listExpiredActiveSubscriptions = `
SELECT user_id, tier, expires_at, is_active, started_at
FROM subscriptions
WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
LIMIT $2`

// ListExpiredActiveSubscriptions returns active assignments whose expiry
// has passed, for the maintenance worker to deactivate.
func (q *Queries) ListExpiredActiveSubscriptions(ctx context.Context, now time.Time, limit int32) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listExpiredActiveSubscriptions, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.UserID, &s.Tier, &s.ExpiresAt, &s.IsActive, &s.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
