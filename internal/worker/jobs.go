package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// The maintenance handlers depend on narrow views of the service layer
// so tests can stub them without standing up a database.

// UsageResetter zeroes offline counters whose monthly reset is due.
type UsageResetter interface {
	ResetDueCounters(ctx context.Context, now time.Time) (int, error)
}

// SessionCleaner removes expired session rows.
type SessionCleaner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SubscriptionExpirer drops lapsed subscriptions and trials to basic.
type SubscriptionExpirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

// UsageResetJob resets monthly offline-download counters for every user
// whose billing anniversary has passed. The reset clock lives on each
// counter row, so the job carries no payload.
type UsageResetJob struct {
	usage  UsageResetter
	logger *slog.Logger
}

func NewUsageResetJob(usage UsageResetter, logger *slog.Logger) *UsageResetJob {
	return &UsageResetJob{usage: usage, logger: logger}
}

func (j *UsageResetJob) Type() string { return JobTypeUsageReset }

func (j *UsageResetJob) Handle(ctx context.Context, _ []byte) error {
	count, err := j.usage.ResetDueCounters(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("reset usage counters: %w", err)
	}
	if count > 0 {
		j.logger.Info("Reset monthly usage counters", "users", count)
	}
	return nil
}

// SessionCleanupJob deletes expired session rows. Expired sessions are
// already rejected at auth time; this keeps the table from growing.
type SessionCleanupJob struct {
	sessions SessionCleaner
	logger   *slog.Logger
}

func NewSessionCleanupJob(sessions SessionCleaner, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{sessions: sessions, logger: logger}
}

func (j *SessionCleanupJob) Type() string { return JobTypeSessionCleanup }

func (j *SessionCleanupJob) Handle(ctx context.Context, _ []byte) error {
	count, err := j.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	if count > 0 {
		j.logger.Info("Deleted expired sessions", "count", count)
	}
	return nil
}

// SubscriptionExpiryJob deactivates subscriptions and trials whose
// expiry has passed, recording the downgrade in subscription history.
type SubscriptionExpiryJob struct {
	subscriptions SubscriptionExpirer
	logger        *slog.Logger
}

func NewSubscriptionExpiryJob(subscriptions SubscriptionExpirer, logger *slog.Logger) *SubscriptionExpiryJob {
	return &SubscriptionExpiryJob{subscriptions: subscriptions, logger: logger}
}

func (j *SubscriptionExpiryJob) Type() string { return JobTypeSubscriptionExpiry }

func (j *SubscriptionExpiryJob) Handle(ctx context.Context, _ []byte) error {
	count, err := j.subscriptions.DeactivateExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("deactivate expired subscriptions: %w", err)
	}
	if count > 0 {
		j.logger.Info("Deactivated expired subscriptions", "count", count)
	}
	return nil
}
