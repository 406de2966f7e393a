package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierLimitsFor(t *testing.T) {
	limits := TierLimits{
		Books:   ContentLimits{OfflineLimit: 3, FavoritesLimit: 10},
		Nashids: ContentLimits{OfflineLimit: 5, FavoritesLimit: Unlimited},
	}

	books, ok := limits.For(ContentBooks)
	assert.True(t, ok)
	assert.Equal(t, 3, books.Limit(LimitOffline))
	assert.Equal(t, 10, books.Limit(LimitFavorites))

	nashids, ok := limits.For(ContentNashids)
	assert.True(t, ok)
	assert.Equal(t, Unlimited, nashids.Limit(LimitFavorites))

	_, ok = limits.For(ContentType("podcasts"))
	assert.False(t, ok)
}

func TestTierLimitsValidate(t *testing.T) {
	tests := []struct {
		name    string
		limits  TierLimits
		wantErr bool
	}{
		{
			name:   "all non-negative",
			limits: TierLimits{Books: ContentLimits{OfflineLimit: 0, FavoritesLimit: 5}},
		},
		{
			name:   "unlimited sentinel",
			limits: TierLimits{Nashids: ContentLimits{OfflineLimit: Unlimited, FavoritesLimit: Unlimited}},
		},
		{
			name:    "negative below sentinel is invalid",
			limits:  TierLimits{Books: ContentLimits{OfflineLimit: -2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, EINVALID, ErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTierAccessAllows(t *testing.T) {
	access := TierAccess{Free: true, Pro: true}

	tests := []struct {
		level   AccessLevel
		allowed bool
		known   bool
	}{
		{AccessFree, true, true},
		{AccessPro, true, true},
		{AccessPremium, false, true},
		{AccessLevel("vip"), false, false},
	}

	for _, tt := range tests {
		allowed, known := access.Allows(tt.level)
		if allowed != tt.allowed || known != tt.known {
			t.Errorf("Allows(%q) = (%v, %v), want (%v, %v)", tt.level, allowed, known, tt.allowed, tt.known)
		}
	}
}

func TestTierFeaturesHas(t *testing.T) {
	features := TierFeatures{
		OfflineMode:        true,
		FamilySharingSeats: 4,
	}

	granted, known := features.Has(FeatureOfflineMode)
	assert.True(t, granted)
	assert.True(t, known)

	// Seat count is a feature flag when positive.
	granted, known = features.Has(FeatureFamilySharing)
	assert.True(t, granted)
	assert.True(t, known)

	granted, known = features.Has(FeatureAdFree)
	assert.False(t, granted)
	assert.True(t, known)

	// Unrecognized feature names are unknown, which the evaluator denies.
	granted, known = features.Has(FeatureName("teleport"))
	assert.False(t, granted)
	assert.False(t, known)
}

func TestDefaultTierSettingsAreValid(t *testing.T) {
	for id, settings := range DefaultTierSettings {
		assert.Equal(t, id, settings.TierID, "tier %s", id)
		assert.True(t, ValidTier(id))
		assert.NoError(t, settings.Limits.Validate(), "tier %s", id)
		// Every tier can see free content.
		allowed, known := settings.Access.Allows(AccessFree)
		assert.True(t, known)
		assert.True(t, allowed, "tier %s must see free content", id)
	}
}
