package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/entitlement"
	"github.com/maktaba-app/maktaba/internal/metrics"
	"github.com/maktaba-app/maktaba/internal/repository"
)

// LibraryService manages a user's personal library: favorites and
// offline download markers. Every add runs check-then-act-then-count
// under the per-user lock so concurrent requests cannot slip past a
// tier limit, and the usage counters move in lockstep with the rows.
type LibraryService interface {
	// AddFavorite marks content as a favorite if the user's tier allows
	// another one. The returned decision carries the denial reason and
	// the current/limit pair either way.
	AddFavorite(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) (domain.Decision, error)

	// RemoveFavorite unmarks a favorite. Removing an item that is not a
	// favorite is a no-op.
	RemoveFavorite(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) error

	// ListFavorites returns the user's favorites of one content type,
	// newest first.
	ListFavorites(ctx context.Context, user *domain.User, ct domain.ContentType) ([]domain.LibraryEntry, error)

	// AddOffline marks content for offline download, gated by the
	// tier's offline cap.
	AddOffline(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) (domain.Decision, error)

	// RemoveOffline drops an offline marker, freeing one slot.
	RemoveOffline(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) error

	// ListOffline returns the user's offline markers of one content
	// type, newest first.
	ListOffline(ctx context.Context, user *domain.User, ct domain.ContentType) ([]domain.LibraryEntry, error)
}

type libraryService struct {
	queries   *repository.Queries
	evaluator entitlement.Evaluator
	usage     UsageService
	locker    *entitlement.Locker
	logger    *slog.Logger
}

var _ LibraryService = (*libraryService)(nil)

func NewLibraryService(queries *repository.Queries, evaluator entitlement.Evaluator, usage UsageService, locker *entitlement.Locker, logger *slog.Logger) LibraryService {
	return &libraryService{
		queries:   queries,
		evaluator: evaluator,
		usage:     usage,
		locker:    locker,
		logger:    logger,
	}
}

func (s *libraryService) AddFavorite(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) (domain.Decision, error) {
	const op = "LibraryService.AddFavorite"

	decision, err := s.add(ctx, op, user, ct, contentID, domain.LimitFavorites)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	metrics.FavoritesAdded.WithLabelValues(string(ct)).Inc()
	return decision, nil
}

func (s *libraryService) RemoveFavorite(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) error {
	return s.remove(ctx, "LibraryService.RemoveFavorite", user, ct, contentID, domain.LimitFavorites)
}

func (s *libraryService) ListFavorites(ctx context.Context, user *domain.User, ct domain.ContentType) ([]domain.LibraryEntry, error) {
	const op = "LibraryService.ListFavorites"

	if err := validateLibraryArgs(op, user, ct); err != nil {
		return nil, err
	}
	rows, err := s.queries.ListFavorites(ctx, user.ID, string(ct))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list favorites")
	}
	return repoLibraryToDomain(rows), nil
}

func (s *libraryService) AddOffline(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) (domain.Decision, error) {
	const op = "LibraryService.AddOffline"

	decision, err := s.add(ctx, op, user, ct, contentID, domain.LimitOffline)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	metrics.OfflineDownloads.WithLabelValues(string(ct)).Inc()
	return decision, nil
}

func (s *libraryService) RemoveOffline(ctx context.Context, user *domain.User, ct domain.ContentType, contentID uuid.UUID) error {
	return s.remove(ctx, "LibraryService.RemoveOffline", user, ct, contentID, domain.LimitOffline)
}

func (s *libraryService) ListOffline(ctx context.Context, user *domain.User, ct domain.ContentType) ([]domain.LibraryEntry, error) {
	const op = "LibraryService.ListOffline"

	if err := validateLibraryArgs(op, user, ct); err != nil {
		return nil, err
	}
	rows, err := s.queries.ListOfflineItems(ctx, user.ID, string(ct))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list offline items")
	}
	return repoLibraryToDomain(rows), nil
}

// add implements the shared check-then-act-then-count path. The lock
// spans the entitlement check, the insert and the counter increment so
// two concurrent adds by the same user serialize instead of both
// reading the same counter value.
func (s *libraryService) add(ctx context.Context, op string, user *domain.User, ct domain.ContentType, contentID uuid.UUID, kind domain.LimitKind) (domain.Decision, error) {
	if err := validateLibraryArgs(op, user, ct); err != nil {
		return domain.Decision{}, err
	}
	if err := s.contentExists(ctx, op, ct, contentID); err != nil {
		return domain.Decision{}, err
	}

	var decision domain.Decision
	err := s.locker.WithUser(user.ID, func() error {
		switch kind {
		case domain.LimitFavorites:
			decision = s.evaluator.CanAddToFavorites(ctx, user, ct)
		default:
			decision = s.evaluator.CanDownloadOffline(ctx, user, ct)
		}
		if !decision.Allowed {
			return nil
		}

		params := repository.LibraryItemParams{
			UserID:      user.ID,
			ContentType: string(ct),
			ContentID:   contentID,
		}
		var insertErr error
		if kind == domain.LimitFavorites {
			insertErr = s.queries.AddFavorite(ctx, params)
		} else {
			insertErr = s.queries.AddOfflineItem(ctx, params)
		}
		if insertErr != nil {
			if isUniqueViolation(insertErr) {
				// Already in the library. The counter stays put.
				return nil
			}
			return domain.Internal(insertErr, op, "Failed to add library item")
		}

		if _, err := s.usage.Increment(ctx, user.ID, ct, kind); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Decision{}, err
	}
	return decision, nil
}

func (s *libraryService) remove(ctx context.Context, op string, user *domain.User, ct domain.ContentType, contentID uuid.UUID, kind domain.LimitKind) error {
	if err := validateLibraryArgs(op, user, ct); err != nil {
		return err
	}

	return s.locker.WithUser(user.ID, func() error {
		params := repository.LibraryItemParams{
			UserID:      user.ID,
			ContentType: string(ct),
			ContentID:   contentID,
		}
		var (
			removed bool
			err     error
		)
		if kind == domain.LimitFavorites {
			removed, err = s.queries.RemoveFavorite(ctx, params)
		} else {
			removed, err = s.queries.RemoveOfflineItem(ctx, params)
		}
		if err != nil {
			return domain.Internal(err, op, "Failed to remove library item")
		}
		if !removed {
			return nil
		}

		if _, err := s.usage.Decrement(ctx, user.ID, ct, kind); err != nil {
			return err
		}
		return nil
	})
}

// contentExists confirms the referenced catalog entry is real before a
// row pointing at it is created.
func (s *libraryService) contentExists(ctx context.Context, op string, ct domain.ContentType, contentID uuid.UUID) error {
	var err error
	switch ct {
	case domain.ContentBooks:
		_, err = s.queries.GetBook(ctx, contentID)
	case domain.ContentNashids:
		_, err = s.queries.GetNashid(ctx, contentID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "Content", contentID.String())
		}
		return domain.Internal(err, op, "Failed to load content")
	}
	return nil
}

func validateLibraryArgs(op string, user *domain.User, ct domain.ContentType) error {
	if user == nil {
		return domain.Unauthorized(op, "Authentication required")
	}
	if !domain.ValidContentType(ct) {
		return domain.Errorf(domain.EINVALID, op, "unknown content type %q", ct)
	}
	return nil
}

func repoLibraryToDomain(rows []repository.LibraryItem) []domain.LibraryEntry {
	out := make([]domain.LibraryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LibraryEntry{
			ContentType: domain.ContentType(row.ContentType),
			ContentID:   row.ContentID,
			AddedAt:     row.CreatedAt,
		})
	}
	return out
}
