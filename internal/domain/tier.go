// Package domain contains core business types and interfaces.
//
// This file defines the subscription tier catalog: limits, content access
// flags, feature flags, and pricing for each tier. Tier settings are
// immutable per version; an admin update replaces a tier's whole bundle.
package domain

// TierID identifies a subscription tier.
type TierID string

const (
	TierBasic   TierID = "basic"
	TierPro     TierID = "pro"
	TierPremium TierID = "premium"
)

// AllTiers lists the known tiers in ascending order of entitlement.
var AllTiers = []TierID{TierBasic, TierPro, TierPremium}

// ValidTier reports whether id names a known tier.
func ValidTier(id TierID) bool {
	switch id {
	case TierBasic, TierPro, TierPremium:
		return true
	}
	return false
}

// PricePeriod is the billing period of a tier.
type PricePeriod string

const (
	PeriodFree     PricePeriod = "free"
	PeriodMonthly  PricePeriod = "monthly"
	PeriodYearly   PricePeriod = "yearly"
	PeriodLifetime PricePeriod = "lifetime"
)

// Unlimited is the reserved sentinel meaning "no limit". Every numeric
// comparison against a limit must check for it before any arithmetic.
const Unlimited = -1

// IsUnlimited reports whether limit is the unlimited sentinel.
func IsUnlimited(limit int) bool {
	return limit == Unlimited
}

// ContentLimits holds the numeric caps for one content type.
// Valid values are non-negative integers or exactly Unlimited (-1).
type ContentLimits struct {
	OfflineLimit   int `json:"offlineLimit"`
	FavoritesLimit int `json:"favoritesLimit"`
}

// Limit returns the cap for the given limit kind.
func (l ContentLimits) Limit(kind LimitKind) int {
	if kind == LimitFavorites {
		return l.FavoritesLimit
	}
	return l.OfflineLimit
}

// TierLimits holds per-content-type caps for a tier.
type TierLimits struct {
	Books   ContentLimits `json:"books"`
	Nashids ContentLimits `json:"nashids"`
}

// For returns the limits for a content type. The second return is false
// for an unknown content type.
func (l TierLimits) For(ct ContentType) (ContentLimits, bool) {
	switch ct {
	case ContentBooks:
		return l.Books, true
	case ContentNashids:
		return l.Nashids, true
	}
	return ContentLimits{}, false
}

// Validate checks the sentinel invariant: limits are non-negative or
// exactly Unlimited. No other negative value is valid.
func (l TierLimits) Validate() error {
	for _, v := range []int{
		l.Books.OfflineLimit, l.Books.FavoritesLimit,
		l.Nashids.OfflineLimit, l.Nashids.FavoritesLimit,
	} {
		if v < Unlimited {
			return Invalid("", "limits must be non-negative or -1 (unlimited)")
		}
	}
	return nil
}

// TierAccess gates which content access levels are visible to a tier,
// independent of usage limits.
type TierAccess struct {
	Free    bool `json:"free"`
	Pro     bool `json:"pro"`
	Premium bool `json:"premium"`
}

// Allows returns the flag for an access level. The second return is false
// for an unrecognized level; the evaluator treats that as allowed
// (fail-open, preserved from the original behavior).
func (a TierAccess) Allows(level AccessLevel) (allowed, known bool) {
	switch level {
	case AccessFree:
		return a.Free, true
	case AccessPro:
		return a.Pro, true
	case AccessPremium:
		return a.Premium, true
	}
	return false, false
}

// FeatureName identifies a binary tier capability.
type FeatureName string

const (
	FeatureOfflineMode      FeatureName = "offline_mode"
	FeatureAdFree           FeatureName = "ad_free"
	FeaturePrioritySupport  FeatureName = "priority_support"
	FeatureEarlyAccess      FeatureName = "early_access"
	FeatureFamilySharing    FeatureName = "family_sharing"
	FeatureExclusiveContent FeatureName = "exclusive_content"
)

// TierFeatures holds the binary capabilities of a tier. FamilySharingSeats
// is a count; the family_sharing feature is granted when it is positive.
type TierFeatures struct {
	OfflineMode        bool `json:"offlineMode"`
	AdFree             bool `json:"adFree"`
	PrioritySupport    bool `json:"prioritySupport"`
	EarlyAccess        bool `json:"earlyAccess"`
	FamilySharingSeats int  `json:"familySharingSeats"`
	ExclusiveContent   bool `json:"exclusiveContent"`
}

// Has returns the flag for a feature name. The second return is false for
// an unrecognized feature; the evaluator treats that as denied
// (fail-closed, deliberately asymmetric with TierAccess.Allows).
func (f TierFeatures) Has(name FeatureName) (granted, known bool) {
	switch name {
	case FeatureOfflineMode:
		return f.OfflineMode, true
	case FeatureAdFree:
		return f.AdFree, true
	case FeaturePrioritySupport:
		return f.PrioritySupport, true
	case FeatureEarlyAccess:
		return f.EarlyAccess, true
	case FeatureFamilySharing:
		return f.FamilySharingSeats > 0, true
	case FeatureExclusiveContent:
		return f.ExclusiveContent, true
	}
	return false, false
}

// TierPrice is the price attached to a tier. Amount is in minor currency
// units (kopecks/cents).
type TierPrice struct {
	Amount int64       `json:"amount"`
	Period PricePeriod `json:"period"`
}

// TierSettings is the full settings bundle for one tier. A bundle is
// replaced wholesale by the admin update path; readers never observe a
// partially updated bundle.
type TierSettings struct {
	TierID      TierID       `json:"tierId"`
	DisplayName string       `json:"displayName"`
	Limits      TierLimits   `json:"limits"`
	Access      TierAccess   `json:"access"`
	Features    TierFeatures `json:"features"`
	Price       TierPrice    `json:"price"`
}

// DefaultTierSettings is the deploy-time tier catalog. It seeds the
// tier_settings table on first migration and serves as documentation of
// the shipped plans.
var DefaultTierSettings = map[TierID]TierSettings{
	TierBasic: {
		TierID:      TierBasic,
		DisplayName: "Basic",
		Limits: TierLimits{
			Books:   ContentLimits{OfflineLimit: 3, FavoritesLimit: 10},
			Nashids: ContentLimits{OfflineLimit: 5, FavoritesLimit: 20},
		},
		Access: TierAccess{Free: true},
		Price:  TierPrice{Amount: 0, Period: PeriodFree},
	},
	TierPro: {
		TierID:      TierPro,
		DisplayName: "Pro",
		Limits: TierLimits{
			Books:   ContentLimits{OfflineLimit: 20, FavoritesLimit: Unlimited},
			Nashids: ContentLimits{OfflineLimit: 50, FavoritesLimit: Unlimited},
		},
		Access: TierAccess{Free: true, Pro: true},
		Features: TierFeatures{
			OfflineMode: true,
			AdFree:      true,
		},
		Price: TierPrice{Amount: 19900, Period: PeriodMonthly},
	},
	TierPremium: {
		TierID:      TierPremium,
		DisplayName: "Premium",
		Limits: TierLimits{
			Books:   ContentLimits{OfflineLimit: Unlimited, FavoritesLimit: Unlimited},
			Nashids: ContentLimits{OfflineLimit: Unlimited, FavoritesLimit: Unlimited},
		},
		Access: TierAccess{Free: true, Pro: true, Premium: true},
		Features: TierFeatures{
			OfflineMode:        true,
			AdFree:             true,
			PrioritySupport:    true,
			EarlyAccess:        true,
			FamilySharingSeats: 4,
			ExclusiveContent:   true,
		},
		Price: TierPrice{Amount: 39900, Period: PeriodMonthly},
	},
}
