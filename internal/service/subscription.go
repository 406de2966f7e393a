package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/catalog"
	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/metrics"
	"github.com/maktaba-app/maktaba/internal/promo"
	"github.com/maktaba-app/maktaba/internal/repository"
)

// Tier change sources recorded in subscription history.
const (
	ChangeSourceAdmin  = "admin"
	ChangeSourceTrial  = "trial"
	ChangeSourceExpiry = "expiry"
)

const (
	// TrialTier is the tier granted by the one-time trial.
	TrialTier = domain.TierPro

	// TrialDuration is how long the trial lasts.
	TrialDuration = 7 * 24 * time.Hour
)

// SubscriptionService owns tier assignments, the one-time trial, and the
// append-only subscription history. Every mutation clears the settings
// cache so a changed tier is never evaluated against stale limits.
type SubscriptionService interface {
	// AssignTier sets a user's tier from the admin panel. A nil expiry
	// means the assignment does not lapse.
	// Returns domain.EINVALID for an unknown tier.
	AssignTier(ctx context.Context, userID uuid.UUID, tier domain.TierID, expiresAt *time.Time) error

	// ActivateTrial starts the user's one-time trial, optionally gated by
	// a promo code.
	// Returns domain.ECONFLICT if the trial was already used.
	// Returns domain.EINVALID for a bad promo code.
	ActivateTrial(ctx context.Context, userID uuid.UUID, promoCode string) (*domain.Subscription, error)

	// History returns a user's tier changes, newest first.
	History(ctx context.Context, userID uuid.UUID) ([]domain.SubscriptionChange, error)

	// DeactivateExpired drops lapsed subscriptions to basic, appending a
	// history entry per user. Returns the number of users deactivated.
	// Run periodically by the maintenance worker.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

type subscriptionService struct {
	queries *repository.Queries
	cache   catalog.Clearer
	promo   *promo.Validator
	logger  *slog.Logger
}

var _ SubscriptionService = (*subscriptionService)(nil)

func NewSubscriptionService(queries *repository.Queries, cache catalog.Clearer, promoValidator *promo.Validator, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		queries: queries,
		cache:   cache,
		promo:   promoValidator,
		logger:  logger,
	}
}

// expiryBatchSize bounds one deactivation sweep.
const expiryBatchSize = 500

func (s *subscriptionService) AssignTier(ctx context.Context, userID uuid.UUID, tier domain.TierID, expiresAt *time.Time) error {
	const op = "SubscriptionService.AssignTier"

	if !domain.ValidTier(tier) {
		return domain.Errorf(domain.EINVALID, op, "unknown tier %q", tier)
	}

	fromTier := s.currentTier(ctx, userID)

	if err := s.queries.UpsertSubscription(ctx, repository.UpsertSubscriptionParams{
		UserID:    userID,
		Tier:      string(tier),
		ExpiresAt: domain.ToNullTime(expiresAt),
		IsActive:  true,
	}); err != nil {
		return domain.Internal(err, op, "Failed to assign tier")
	}

	if err := s.queries.AppendSubscriptionHistory(ctx, repository.AppendSubscriptionHistoryParams{
		UserID:   userID,
		FromTier: string(fromTier),
		ToTier:   string(tier),
		Source:   ChangeSourceAdmin,
	}); err != nil {
		return domain.Internal(err, op, "Failed to record tier change")
	}

	// A tier change must be visible to the very next entitlement check.
	s.cache.Clear()

	s.logger.Info("tier assigned", "user_id", userID, "from", fromTier, "to", tier)
	return nil
}

func (s *subscriptionService) ActivateTrial(ctx context.Context, userID uuid.UUID, promoCode string) (*domain.Subscription, error) {
	const op = "SubscriptionService.ActivateTrial"

	if !s.promo.ValidateCode(promoCode) {
		return nil, domain.Invalid(op, "Invalid promo code")
	}

	// The used flag is write-once: the insert conflicts when any trial
	// row exists, no matter how long ago it expired.
	expiresAt := time.Now().Add(TrialDuration)
	err := s.queries.MarkTrialUsed(ctx, repository.MarkTrialUsedParams{
		UserID:    userID,
		Tier:      string(TrialTier),
		ExpiresAt: domain.ToNullTime(&expiresAt),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Trial already used")
		}
		return nil, domain.Internal(err, op, "Failed to record trial")
	}

	fromTier := s.currentTier(ctx, userID)

	if err := s.queries.UpsertSubscription(ctx, repository.UpsertSubscriptionParams{
		UserID:    userID,
		Tier:      string(TrialTier),
		ExpiresAt: domain.ToNullTime(&expiresAt),
		IsActive:  true,
	}); err != nil {
		return nil, domain.Internal(err, op, "Failed to apply trial tier")
	}

	if err := s.queries.AppendSubscriptionHistory(ctx, repository.AppendSubscriptionHistoryParams{
		UserID:   userID,
		FromTier: string(fromTier),
		ToTier:   string(TrialTier),
		Source:   ChangeSourceTrial,
	}); err != nil {
		return nil, domain.Internal(err, op, "Failed to record tier change")
	}

	s.cache.Clear()
	metrics.TrialsActivated.Inc()

	s.logger.Info("trial activated", "user_id", userID, "tier", TrialTier, "expires_at", expiresAt)
	return &domain.Subscription{
		Tier:      TrialTier,
		ExpiresAt: &expiresAt,
		IsActive:  true,
		StartedAt: time.Now(),
	}, nil
}

func (s *subscriptionService) History(ctx context.Context, userID uuid.UUID) ([]domain.SubscriptionChange, error) {
	const op = "SubscriptionService.History"

	rows, err := s.queries.ListSubscriptionHistory(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load subscription history")
	}

	out := make([]domain.SubscriptionChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SubscriptionChange{
			ID:        row.ID,
			UserID:    row.UserID,
			FromTier:  domain.TierID(row.FromTier),
			ToTier:    domain.TierID(row.ToTier),
			Source:    row.Source,
			ChangedAt: row.ChangedAt,
		})
	}
	return out, nil
}

func (s *subscriptionService) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	const op = "SubscriptionService.DeactivateExpired"

	total := 0
	for {
		expired, err := s.queries.ListExpiredActiveSubscriptions(ctx, now, expiryBatchSize)
		if err != nil {
			return total, domain.Internal(err, op, "Failed to list expired subscriptions")
		}
		if len(expired) == 0 {
			break
		}

		for _, sub := range expired {
			if err := s.queries.UpsertSubscription(ctx, repository.UpsertSubscriptionParams{
				UserID:   sub.UserID,
				Tier:     string(domain.TierBasic),
				IsActive: true,
			}); err != nil {
				return total, domain.Internal(err, op, "Failed to deactivate subscription")
			}
			if err := s.queries.AppendSubscriptionHistory(ctx, repository.AppendSubscriptionHistoryParams{
				UserID:   sub.UserID,
				FromTier: sub.Tier,
				ToTier:   string(domain.TierBasic),
				Source:   ChangeSourceExpiry,
			}); err != nil {
				return total, domain.Internal(err, op, "Failed to record tier change")
			}
			total++
		}

		if len(expired) < expiryBatchSize {
			break
		}
	}

	if total > 0 {
		s.cache.Clear()
		s.logger.Info("expired subscriptions deactivated", "users", total)
	}
	return total, nil
}

// isUniqueViolation spots unique-constraint failures without binding to
// driver-specific error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// currentTier reads the user's present tier for history entries. A user
// with no subscription row is on basic.
func (s *subscriptionService) currentTier(ctx context.Context, userID uuid.UUID) domain.TierID {
	sub, err := s.queries.GetSubscription(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to read current tier for history", "user_id", userID, "error", err)
		}
		return domain.TierBasic
	}
	if !sub.IsActive {
		return domain.TierBasic
	}
	return domain.TierID(sub.Tier)
}
