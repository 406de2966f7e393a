// Package entitlement evaluates what a user's subscription tier lets them
// do. All checks return a domain.Decision value; a denial is an expected
// outcome, not an error. Errors are reserved for infrastructure failures,
// and even those surface as conservative denials on the check paths.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/catalog"
	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/metrics"
)

// Check names used for instrumentation labels.
const (
	checkOffline   = "offline_download"
	checkFavorites = "add_favorite"
	checkAccess    = "content_access"
	checkFeature   = "feature"
)

// UsageSource reads a user's current usage counters. A user with no
// counters row yet reads as all zeroes.
type UsageSource interface {
	Counters(ctx context.Context, userID uuid.UUID) (domain.UsageCounters, error)
}

// Evaluator answers entitlement questions for a user.
type Evaluator interface {
	// CanDownloadOffline checks the offline cap for one content type.
	CanDownloadOffline(ctx context.Context, user *domain.User, ct domain.ContentType) domain.Decision
	// CanAddToFavorites checks the favorites cap for one content type.
	CanAddToFavorites(ctx context.Context, user *domain.User, ct domain.ContentType) domain.Decision
	// CanAccessContent checks whether the user's tier may see content at
	// the given access level. Unrecognized levels are allowed so that
	// newly introduced levels degrade to visible rather than hiding
	// content from everyone.
	CanAccessContent(ctx context.Context, user *domain.User, level domain.AccessLevel) domain.Decision
	// HasFeature checks a binary tier capability. Unrecognized feature
	// names are denied, the opposite polarity of CanAccessContent:
	// granting an unknown capability is a worse failure than hiding one.
	HasFeature(ctx context.Context, user *domain.User, feature domain.FeatureName) domain.Decision
	// LimitsSummary projects every cap against current usage for display.
	LimitsSummary(ctx context.Context, user *domain.User) (*domain.LimitsSummary, error)
}

type evaluator struct {
	settings catalog.Source
	usage    UsageSource
	logger   *slog.Logger
}

var _ Evaluator = (*evaluator)(nil)

func NewEvaluator(settings catalog.Source, usage UsageSource, logger *slog.Logger) Evaluator {
	return &evaluator{
		settings: settings,
		usage:    usage,
		logger:   logger,
	}
}

func (e *evaluator) CanDownloadOffline(ctx context.Context, user *domain.User, ct domain.ContentType) domain.Decision {
	d := e.checkLimit(ctx, user, ct, domain.LimitOffline)
	metrics.EntitlementCheck(checkOffline, d.Allowed)
	return d
}

func (e *evaluator) CanAddToFavorites(ctx context.Context, user *domain.User, ct domain.ContentType) domain.Decision {
	d := e.checkLimit(ctx, user, ct, domain.LimitFavorites)
	metrics.EntitlementCheck(checkFavorites, d.Allowed)
	return d
}

// checkLimit is the shared counter-versus-cap comparison behind both
// limit checks.
func (e *evaluator) checkLimit(ctx context.Context, user *domain.User, ct domain.ContentType, kind domain.LimitKind) domain.Decision {
	tier, ok := user.CurrentTier()
	if !ok {
		return domain.Deny(domain.ReasonNotAuthenticated)
	}

	settings, err := e.settings.GetSettings(ctx, tier)
	if err != nil {
		// Never allow on a settings failure, and never guess a limit.
		e.logger.Warn("settings fetch failed, denying", "tier", tier, "error", err)
		return domain.Deny(domain.ReasonSettingsUnavailable)
	}

	limits, ok := settings.Limits.For(ct)
	if !ok {
		return domain.Deny(fmt.Sprintf("unknown content type %q", ct))
	}
	limit := limits.Limit(kind)

	counters, err := e.usage.Counters(ctx, user.ID)
	if err != nil {
		e.logger.Warn("usage fetch failed, denying", "user_id", user.ID, "error", err)
		return domain.Deny(domain.ReasonSettingsUnavailable)
	}
	current, _ := counters.Counter(ct, kind)

	if domain.IsUnlimited(limit) {
		return domain.AllowUnlimited(current)
	}
	if current >= limit {
		return domain.DenyLimitReached(ct, kind, current, limit)
	}
	return domain.AllowWithin(current, limit)
}

func (e *evaluator) CanAccessContent(ctx context.Context, user *domain.User, level domain.AccessLevel) domain.Decision {
	d := e.checkAccess(ctx, user, level)
	metrics.EntitlementCheck(checkAccess, d.Allowed)
	return d
}

func (e *evaluator) checkAccess(ctx context.Context, user *domain.User, level domain.AccessLevel) domain.Decision {
	tier, ok := user.CurrentTier()
	if !ok {
		return domain.Deny(domain.ReasonNotAuthenticated)
	}

	settings, err := e.settings.GetSettings(ctx, tier)
	if err != nil {
		e.logger.Warn("settings fetch failed, denying", "tier", tier, "error", err)
		return domain.Deny(domain.ReasonSettingsUnavailable)
	}

	allowed, known := settings.Access.Allows(level)
	if !known {
		e.logger.Warn("unrecognized access level, allowing", "level", level, "tier", tier)
		return domain.Allow()
	}
	if !allowed {
		return domain.Deny(fmt.Sprintf("%s content requires a higher tier", level))
	}
	return domain.Allow()
}

func (e *evaluator) HasFeature(ctx context.Context, user *domain.User, feature domain.FeatureName) domain.Decision {
	d := e.checkFeature(ctx, user, feature)
	metrics.EntitlementCheck(checkFeature, d.Allowed)
	return d
}

func (e *evaluator) checkFeature(ctx context.Context, user *domain.User, feature domain.FeatureName) domain.Decision {
	tier, ok := user.CurrentTier()
	if !ok {
		return domain.Deny(domain.ReasonNotAuthenticated)
	}

	settings, err := e.settings.GetSettings(ctx, tier)
	if err != nil {
		e.logger.Warn("settings fetch failed, denying", "tier", tier, "error", err)
		return domain.Deny(domain.ReasonSettingsUnavailable)
	}

	granted, known := settings.Features.Has(feature)
	if !known {
		return domain.Deny(fmt.Sprintf("unknown feature %q", feature))
	}
	if !granted {
		return domain.Deny(fmt.Sprintf("feature %s is not included in the %s tier", feature, tier))
	}
	return domain.Allow()
}

func (e *evaluator) LimitsSummary(ctx context.Context, user *domain.User) (*domain.LimitsSummary, error) {
	const op = "Evaluator.LimitsSummary"

	tier, ok := user.CurrentTier()
	if !ok {
		return nil, domain.Unauthorized(op, domain.ReasonNotAuthenticated)
	}

	settings, err := e.settings.GetSettings(ctx, tier)
	if err != nil {
		return nil, err
	}
	counters, err := e.usage.Counters(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	summary := &domain.LimitsSummary{
		Tier:   tier,
		ByType: make(map[domain.ContentType]domain.ContentLimitsSummary, 2),
	}
	for _, ct := range []domain.ContentType{domain.ContentBooks, domain.ContentNashids} {
		limits, _ := settings.Limits.For(ct)
		offline, _ := counters.Counter(ct, domain.LimitOffline)
		favorites, _ := counters.Counter(ct, domain.LimitFavorites)
		summary.ByType[ct] = domain.ContentLimitsSummary{
			Offline:   limitStatus(limits.OfflineLimit, offline),
			Favorites: limitStatus(limits.FavoritesLimit, favorites),
		}
	}
	return summary, nil
}

func limitStatus(limit, current int) domain.LimitStatus {
	return domain.LimitStatus{
		Limit:     limit,
		Current:   current,
		Unlimited: domain.IsUnlimited(limit),
	}
}
