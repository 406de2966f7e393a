// Package catalog loads, caches, and administers the per-tier subscription
// settings that drive entitlement decisions.
//
// Settings live in Postgres as one row per tier with four jsonb bundles
// (limits, access, features, price). A Source fetches the decoded bundle for
// a tier; Cache and RedisCache wrap a Source to keep hot settings out of the
// database on the entitlement path.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/sqlc-dev/pqtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/repository"
)

// Source provides the settings bundle for a subscription tier.
type Source interface {
	GetSettings(ctx context.Context, tier domain.TierID) (*domain.TierSettings, error)
}

// Store extends Source with the administrative operations used by the admin
// panel and startup seeding.
type Store interface {
	Source
	ListSettings(ctx context.Context) ([]domain.TierSettings, error)
	ReplaceSettings(ctx context.Context, settings domain.TierSettings) error
	EnsureDefaults(ctx context.Context) error
}

// PGStore is the Postgres-backed settings store.
type PGStore struct {
	queries *repository.Queries
	logger  *slog.Logger
}

var _ Store = (*PGStore)(nil)

func NewPGStore(queries *repository.Queries, logger *slog.Logger) *PGStore {
	return &PGStore{
		queries: queries,
		logger:  logger,
	}
}

// GetSettings returns the decoded settings bundle for a tier.
func (s *PGStore) GetSettings(ctx context.Context, tier domain.TierID) (*domain.TierSettings, error) {
	const op = "PGStore.GetSettings"

	row, err := s.queries.GetTierSetting(ctx, string(tier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "tier settings", string(tier))
		}
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "failed to load tier settings")
	}

	settings, err := decodeRow(row)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "failed to decode tier settings")
	}
	return settings, nil
}

// ListSettings returns the settings for every configured tier.
func (s *PGStore) ListSettings(ctx context.Context) ([]domain.TierSettings, error) {
	const op = "PGStore.ListSettings"

	rows, err := s.queries.ListTierSettings(ctx)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "failed to list tier settings")
	}

	out := make([]domain.TierSettings, 0, len(rows))
	for _, row := range rows {
		settings, err := decodeRow(row)
		if err != nil {
			return nil, domain.Wrap(err, domain.EINTERNAL, op, "failed to decode tier settings")
		}
		out = append(out, *settings)
	}
	return out, nil
}

// ReplaceSettings stores a full settings bundle for a tier. The bundle
// replaces the existing one atomically; there is no partial update.
func (s *PGStore) ReplaceSettings(ctx context.Context, settings domain.TierSettings) error {
	const op = "PGStore.ReplaceSettings"

	if !domain.ValidTier(settings.TierID) {
		return domain.Errorf(domain.EINVALID, op, "unknown tier %q", settings.TierID)
	}
	if err := settings.Limits.Validate(); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "invalid limits")
	}
	if settings.DisplayName == "" {
		settings.DisplayName = cases.Title(language.English).String(string(settings.TierID))
	}

	params, err := encodeSettings(settings)
	if err != nil {
		return domain.Wrap(err, domain.EINTERNAL, op, "failed to encode tier settings")
	}

	if err := s.queries.UpsertTierSetting(ctx, params); err != nil {
		return domain.Wrap(err, domain.EINTERNAL, op, "failed to store tier settings")
	}

	s.logger.Info("tier settings replaced", "tier", settings.TierID)
	return nil
}

// EnsureDefaults seeds the built-in settings for any tier that has no row
// yet. Existing rows are left untouched so admin edits survive restarts.
func (s *PGStore) EnsureDefaults(ctx context.Context) error {
	const op = "PGStore.EnsureDefaults"

	for _, tier := range domain.AllTiers {
		_, err := s.queries.GetTierSetting(ctx, string(tier))
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Wrap(err, domain.EINTERNAL, op, "failed to check tier settings")
		}

		defaults, ok := domain.DefaultTierSettings[tier]
		if !ok {
			return domain.Errorf(domain.EINTERNAL, op, "no default settings for tier %q", tier)
		}
		if err := s.ReplaceSettings(ctx, defaults); err != nil {
			return err
		}
		s.logger.Info("seeded default tier settings", "tier", tier)
	}
	return nil
}

// decodeRow unpacks the four jsonb bundles of a settings row.
func decodeRow(row repository.TierSetting) (*domain.TierSettings, error) {
	settings := &domain.TierSettings{
		TierID:      domain.TierID(row.TierID),
		DisplayName: row.DisplayName,
	}
	if err := decodeJSON(row.Limits, &settings.Limits); err != nil {
		return nil, err
	}
	if err := decodeJSON(row.Access, &settings.Access); err != nil {
		return nil, err
	}
	if err := decodeJSON(row.Features, &settings.Features); err != nil {
		return nil, err
	}
	if err := decodeJSON(row.Price, &settings.Price); err != nil {
		return nil, err
	}
	return settings, nil
}

func decodeJSON(raw pqtype.NullRawMessage, dst any) error {
	if !raw.Valid {
		return nil
	}
	return json.Unmarshal(raw.RawMessage, dst)
}

func encodeSettings(settings domain.TierSettings) (repository.UpsertTierSettingParams, error) {
	limits, err := encodeJSON(settings.Limits)
	if err != nil {
		return repository.UpsertTierSettingParams{}, err
	}
	access, err := encodeJSON(settings.Access)
	if err != nil {
		return repository.UpsertTierSettingParams{}, err
	}
	features, err := encodeJSON(settings.Features)
	if err != nil {
		return repository.UpsertTierSettingParams{}, err
	}
	price, err := encodeJSON(settings.Price)
	if err != nil {
		return repository.UpsertTierSettingParams{}, err
	}

	return repository.UpsertTierSettingParams{
		TierID:      string(settings.TierID),
		DisplayName: settings.DisplayName,
		Limits:      limits,
		Access:      access,
		Features:    features,
		Price:       price,
	}, nil
}

func encodeJSON(src any) (pqtype.NullRawMessage, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}
