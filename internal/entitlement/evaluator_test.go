package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/maktaba-app/maktaba/internal/domain"
)

// stubSettings serves a fixed settings bundle regardless of tier, or a
// fixed error.
type stubSettings struct {
	settings map[domain.TierID]*domain.TierSettings
	err      error
}

func (s *stubSettings) GetSettings(_ context.Context, tier domain.TierID) (*domain.TierSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	settings, ok := s.settings[tier]
	if !ok {
		return nil, domain.NotFound("stubSettings.GetSettings", "tier settings", string(tier))
	}
	return settings, nil
}

// stubUsage serves fixed counters.
type stubUsage struct {
	counters domain.UsageCounters
	err      error
}

func (s *stubUsage) Counters(_ context.Context, _ uuid.UUID) (domain.UsageCounters, error) {
	if s.err != nil {
		return domain.UsageCounters{}, s.err
	}
	return s.counters, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultsSource() *stubSettings {
	settings := make(map[domain.TierID]*domain.TierSettings, len(domain.DefaultTierSettings))
	for tier, s := range domain.DefaultTierSettings {
		s := s
		settings[tier] = &s
	}
	return &stubSettings{settings: settings}
}

func userOn(tier domain.TierID) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		Subscription: &domain.Subscription{Tier: tier, IsActive: true},
	}
}

func TestCheckDeniesUnauthenticated(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())
	ctx := context.Background()

	for name, user := range map[string]*domain.User{
		"nil user":        nil,
		"no subscription": {ID: uuid.New()},
	} {
		t.Run(name, func(t *testing.T) {
			d := eval.CanDownloadOffline(ctx, user, domain.ContentBooks)
			assert.False(t, d.Allowed)
			assert.Equal(t, domain.ReasonNotAuthenticated, d.Reason)
		})
	}
}

func TestCheckDeniesAtLimitWithNumberInReason(t *testing.T) {
	src := &stubSettings{settings: map[domain.TierID]*domain.TierSettings{
		domain.TierBasic: {
			TierID: domain.TierBasic,
			Limits: domain.TierLimits{
				Books: domain.ContentLimits{OfflineLimit: 2, FavoritesLimit: 10},
			},
		},
	}}
	usage := &stubUsage{counters: domain.UsageCounters{BooksOffline: 2}}
	eval := NewEvaluator(src, usage, testLogger())

	d := eval.CanDownloadOffline(context.Background(), userOn(domain.TierBasic), domain.ContentBooks)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Current)
	assert.Equal(t, 2, d.Limit)
	assert.Contains(t, d.Reason, "2", "denial must quote the numeric limit")
}

func TestCheckAllowsUnderLimit(t *testing.T) {
	usage := &stubUsage{counters: domain.UsageCounters{BooksOffline: 2}}
	eval := NewEvaluator(defaultsSource(), usage, testLogger())

	d := eval.CanDownloadOffline(context.Background(), userOn(domain.TierBasic), domain.ContentBooks)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Current)
	assert.Equal(t, 3, d.Limit)
}

func TestCheckUnlimitedIgnoresCurrent(t *testing.T) {
	usage := &stubUsage{counters: domain.UsageCounters{BooksFavorites: 9999}}
	eval := NewEvaluator(defaultsSource(), usage, testLogger())

	d := eval.CanAddToFavorites(context.Background(), userOn(domain.TierPro), domain.ContentBooks)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9999, d.Current)
	assert.Equal(t, domain.Unlimited, d.Limit)
}

func TestCheckZeroLimitAlwaysDenies(t *testing.T) {
	src := &stubSettings{settings: map[domain.TierID]*domain.TierSettings{
		domain.TierBasic: {
			TierID: domain.TierBasic,
			Limits: domain.TierLimits{
				Nashids: domain.ContentLimits{OfflineLimit: 0, FavoritesLimit: 0},
			},
		},
	}}
	eval := NewEvaluator(src, &stubUsage{}, testLogger())

	d := eval.CanDownloadOffline(context.Background(), userOn(domain.TierBasic), domain.ContentNashids)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Limit)
}

func TestCheckDeniesWhenSettingsUnavailable(t *testing.T) {
	src := &stubSettings{err: errors.New("connection refused")}
	eval := NewEvaluator(src, &stubUsage{}, testLogger())

	d := eval.CanDownloadOffline(context.Background(), userOn(domain.TierPremium), domain.ContentBooks)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonSettingsUnavailable, d.Reason)
	assert.Equal(t, 0, d.Current)
	assert.Equal(t, 0, d.Limit)
}

func TestInactiveSubscriptionFallsBackToBasic(t *testing.T) {
	usage := &stubUsage{counters: domain.UsageCounters{BooksOffline: 3}}
	eval := NewEvaluator(defaultsSource(), usage, testLogger())

	user := &domain.User{
		ID:           uuid.New(),
		Subscription: &domain.Subscription{Tier: domain.TierPremium, IsActive: false},
	}
	d := eval.CanDownloadOffline(context.Background(), user, domain.ContentBooks)
	assert.False(t, d.Allowed, "lapsed premium is evaluated at basic limits")
	assert.Equal(t, 3, d.Limit)
}

func TestAccessUnrecognizedLevelAllowed(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())
	ctx := context.Background()

	d := eval.CanAccessContent(ctx, userOn(domain.TierBasic), domain.AccessLevel("platinum"))
	assert.True(t, d.Allowed, "unknown access levels fail open")

	d = eval.CanAccessContent(ctx, userOn(domain.TierBasic), domain.AccessPremium)
	assert.False(t, d.Allowed, "known denied level still denies")
}

func TestFeatureUnrecognizedNameDenied(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())
	ctx := context.Background()

	d := eval.HasFeature(ctx, userOn(domain.TierPremium), domain.FeatureName("teleportation"))
	assert.False(t, d.Allowed, "unknown features fail closed")

	d = eval.HasFeature(ctx, userOn(domain.TierPremium), domain.FeatureAdFree)
	assert.True(t, d.Allowed)
}

func TestFamilySharingRequiresSeats(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())
	ctx := context.Background()

	assert.True(t, eval.HasFeature(ctx, userOn(domain.TierPremium), domain.FeatureFamilySharing).Allowed)
	assert.False(t, eval.HasFeature(ctx, userOn(domain.TierPro), domain.FeatureFamilySharing).Allowed)
}

func TestLimitsSummary(t *testing.T) {
	usage := &stubUsage{counters: domain.UsageCounters{
		BooksOffline:     1,
		BooksFavorites:   4,
		NashidsOffline:   0,
		NashidsFavorites: 12,
	}}
	eval := NewEvaluator(defaultsSource(), usage, testLogger())

	summary, err := eval.LimitsSummary(context.Background(), userOn(domain.TierBasic))
	require.NoError(t, err)

	assert.Equal(t, domain.TierBasic, summary.Tier)
	books := summary.ByType[domain.ContentBooks]
	assert.Equal(t, 1, books.Offline.Current)
	assert.Equal(t, 3, books.Offline.Limit)
	assert.False(t, books.Offline.Unlimited)
	nashids := summary.ByType[domain.ContentNashids]
	assert.Equal(t, 12, nashids.Favorites.Current)
	assert.Equal(t, 20, nashids.Favorites.Limit)
}

func TestLimitsSummaryUnlimitedFlag(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())

	summary, err := eval.LimitsSummary(context.Background(), userOn(domain.TierPremium))
	require.NoError(t, err)

	for ct, s := range summary.ByType {
		assert.True(t, s.Offline.Unlimited, string(ct))
		assert.True(t, s.Favorites.Unlimited, string(ct))
	}
}

func TestLimitsSummaryUnauthenticated(t *testing.T) {
	eval := NewEvaluator(defaultsSource(), &stubUsage{}, testLogger())

	_, err := eval.LimitsSummary(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

// TestLimitBoundaryProperty pins down the cap comparison for arbitrary
// limit and usage values: a finite limit allows iff current < limit, and
// the unlimited sentinel always allows.
func TestLimitBoundaryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(domain.Unlimited, 1000).Draw(t, "limit")
		current := rapid.IntRange(0, 2000).Draw(t, "current")

		src := &stubSettings{settings: map[domain.TierID]*domain.TierSettings{
			domain.TierBasic: {
				TierID: domain.TierBasic,
				Limits: domain.TierLimits{
					Books: domain.ContentLimits{OfflineLimit: limit, FavoritesLimit: limit},
				},
			},
		}}
		usage := &stubUsage{counters: domain.UsageCounters{BooksOffline: current}}
		eval := NewEvaluator(src, usage, testLogger())

		d := eval.CanDownloadOffline(context.Background(), userOn(domain.TierBasic), domain.ContentBooks)

		wantAllowed := domain.IsUnlimited(limit) || current < limit
		if d.Allowed != wantAllowed {
			t.Fatalf("limit=%d current=%d: allowed=%v, want %v", limit, current, d.Allowed, wantAllowed)
		}
		if !d.Allowed && !domain.IsUnlimited(limit) {
			if !strings.Contains(d.Reason, strconv.Itoa(limit)) {
				t.Fatalf("denial reason %q does not quote limit %d", d.Reason, limit)
			}
		}
	})
}
