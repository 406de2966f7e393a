package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/repository"
)

// UsageService owns the per-user usage counters. Counters move only
// through Increment/Decrement, tied 1:1 to library add/remove actions,
// and through the monthly reset.
type UsageService interface {
	// Counters returns a user's current counters. A user without a
	// counter row yet reads as all zeroes.
	Counters(ctx context.Context, userID uuid.UUID) (domain.UsageCounters, error)

	// Increment bumps the addressed counter by one.
	Increment(ctx context.Context, userID uuid.UUID, ct domain.ContentType, kind domain.LimitKind) (domain.UsageCounters, error)

	// Decrement lowers the addressed counter by one, flooring at zero.
	// A decrement at zero is a no-op, not an error.
	Decrement(ctx context.Context, userID uuid.UUID, ct domain.ContentType, kind domain.LimitKind) (domain.UsageCounters, error)

	// ResetDueCounters zeroes the offline counters of every user whose
	// reset date lies in an earlier calendar month, in batches. Returns
	// the number of users reset. Run monthly by the maintenance worker.
	ResetDueCounters(ctx context.Context, now time.Time) (int, error)
}

type usageService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

var _ UsageService = (*usageService)(nil)

func NewUsageService(queries *repository.Queries, logger *slog.Logger) UsageService {
	return &usageService{
		queries: queries,
		logger:  logger,
	}
}

// resetBatchSize bounds one reset sweep so the job stays short-lived;
// the worker reschedules until no due rows remain.
const resetBatchSize = 500

// adjustKey addresses one of the four adjustment queries.
type adjustKey struct {
	Content domain.ContentType
	Kind    domain.LimitKind
}

// adjusters maps {content type × limit kind} to its dedicated repository
// query. Enumerated explicitly, mirroring the domain counter table, so an
// unknown combination is an EINVALID rather than a silently wrong column.
var adjusters = map[adjustKey]func(*repository.Queries, context.Context, uuid.UUID, int32) (repository.UsageCounter, error){
	{domain.ContentBooks, domain.LimitOffline}:     (*repository.Queries).AdjustBooksOffline,
	{domain.ContentBooks, domain.LimitFavorites}:   (*repository.Queries).AdjustBooksFavorites,
	{domain.ContentNashids, domain.LimitOffline}:   (*repository.Queries).AdjustNashidsOffline,
	{domain.ContentNashids, domain.LimitFavorites}: (*repository.Queries).AdjustNashidsFavorites,
}

func (s *usageService) Counters(ctx context.Context, userID uuid.UUID) (domain.UsageCounters, error) {
	const op = "UsageService.Counters"

	row, err := s.queries.GetUsageCounters(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UsageCounters{UserID: userID}, nil
		}
		return domain.UsageCounters{}, domain.Internal(err, op, "Failed to load usage counters")
	}
	return repoUsageToDomain(row), nil
}

func (s *usageService) Increment(ctx context.Context, userID uuid.UUID, ct domain.ContentType, kind domain.LimitKind) (domain.UsageCounters, error) {
	return s.adjust(ctx, "UsageService.Increment", userID, ct, kind, 1)
}

func (s *usageService) Decrement(ctx context.Context, userID uuid.UUID, ct domain.ContentType, kind domain.LimitKind) (domain.UsageCounters, error) {
	return s.adjust(ctx, "UsageService.Decrement", userID, ct, kind, -1)
}

func (s *usageService) adjust(ctx context.Context, op string, userID uuid.UUID, ct domain.ContentType, kind domain.LimitKind, delta int32) (domain.UsageCounters, error) {
	fn, ok := adjusters[adjustKey{ct, kind}]
	if !ok {
		return domain.UsageCounters{}, domain.Errorf(domain.EINVALID, op, "unknown counter %s/%s", ct, kind)
	}

	row, err := fn(s.queries, ctx, userID, delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Counter row missing (user predates counters or row was
			// never created). Create it and retry once.
			if err := s.queries.CreateUsageCounters(ctx, userID); err != nil {
				return domain.UsageCounters{}, domain.Internal(err, op, "Failed to create usage counters")
			}
			row, err = fn(s.queries, ctx, userID, delta)
			if err != nil {
				return domain.UsageCounters{}, domain.Internal(err, op, "Failed to adjust usage counter")
			}
			return repoUsageToDomain(row), nil
		}
		return domain.UsageCounters{}, domain.Internal(err, op, "Failed to adjust usage counter")
	}
	return repoUsageToDomain(row), nil
}

func (s *usageService) ResetDueCounters(ctx context.Context, now time.Time) (int, error) {
	const op = "UsageService.ResetDueCounters"

	total := 0
	for {
		due, err := s.queries.ListUsageDueForReset(ctx, now, resetBatchSize)
		if err != nil {
			return total, domain.Internal(err, op, "Failed to list counters due for reset")
		}
		if len(due) == 0 {
			break
		}
		for _, row := range due {
			if err := s.queries.ResetMonthlyUsage(ctx, row.UserID, now); err != nil {
				return total, domain.Internal(err, op, "Failed to reset usage counters")
			}
			total++
		}
		if len(due) < resetBatchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("monthly usage reset", "users", total)
	}
	return total, nil
}

// repoUsageToDomain converts a counters row to the domain type.
func repoUsageToDomain(c repository.UsageCounter) domain.UsageCounters {
	return domain.UsageCounters{
		UserID:           c.UserID,
		BooksOffline:     int(c.BooksOffline),
		BooksFavorites:   int(c.BooksFavorites),
		NashidsOffline:   int(c.NashidsOffline),
		NashidsFavorites: int(c.NashidsFavorites),
		ResetDate:        c.ResetDate,
	}
}
