// Package service contains the business logic layer.
//
// Services orchestrate repositories, the settings catalog, and domain
// logic. They own input validation, business rule enforcement, and the
// translation of database errors into domain errors.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/repository"
	"github.com/maktaba-app/maktaba/internal/telegram"
)

const (
	// BcryptCost is the cost factor for admin password hashing. Cost 12
	// keeps a login around 250ms on current hardware.
	BcryptCost = 12

	// SessionTokenBytes is the entropy of a session token. The raw token
	// is hex-encoded to 64 characters; only its SHA-256 hash is stored.
	SessionTokenBytes = 32

	// SessionDuration is how long a session stays valid. Mini App users
	// re-authenticate transparently through init data, so a long window
	// mostly spares the database of session churn.
	SessionDuration = 30 * 24 * time.Hour
)

// UserService handles identity: Telegram logins, admin logins, and
// session lifecycle.
type UserService interface {
	// LoginTelegram validates signed Mini App init data and exchanges it
	// for a session, creating the user on first contact.
	// Returns domain.EUNAUTHORIZED when the init data does not verify.
	LoginTelegram(ctx context.Context, initData string) (*domain.LoginResult, error)

	// LoginAdmin authenticates an admin account by email and password.
	// Returns domain.EUNAUTHORIZED for bad credentials or non-admin users.
	LoginAdmin(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user with subscription and trial state loaded.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken resolves a session token to its user, with
	// subscription and trial state loaded.
	// Returns domain.EUNAUTHORIZED if the token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// DeleteExpiredSessions removes expired sessions, returning the count.
	// Run periodically by the maintenance worker.
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// EnsureAdminUser provisions the bootstrap admin account if no user
	// with that email exists yet. Called once at startup.
	EnsureAdminUser(ctx context.Context, email, password string) error
}

type userService struct {
	queries   *repository.Queries
	validator *telegram.Validator
	logger    *slog.Logger
}

var _ UserService = (*userService)(nil)

func NewUserService(queries *repository.Queries, validator *telegram.Validator, logger *slog.Logger) UserService {
	return &userService{
		queries:   queries,
		validator: validator,
		logger:    logger,
	}
}

func (s *userService) LoginTelegram(ctx context.Context, initData string) (*domain.LoginResult, error) {
	const op = "UserService.LoginTelegram"

	profile, err := s.validator.Validate(initData)
	if err != nil {
		return nil, err
	}

	repoUser, err := s.queries.GetUserByTelegramID(ctx, profile.TelegramID)
	switch {
	case err == nil:
		// Known user: refresh the profile fields Telegram sent us.
		err = s.queries.UpdateTelegramProfile(ctx, repository.UpdateTelegramProfileParams{
			ID:           repoUser.ID,
			Username:     domain.ToNullString(profile.Username),
			FirstName:    domain.ToNullString(profile.FirstName),
			LastName:     domain.ToNullString(profile.LastName),
			LanguageCode: domain.ToNullString(profile.LanguageCode),
		})
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to refresh profile")
		}
	case errors.Is(err, sql.ErrNoRows):
		repoUser, err = s.queries.CreateTelegramUser(ctx, repository.CreateTelegramUserParams{
			TelegramID:   profile.TelegramID,
			Username:     domain.ToNullString(profile.Username),
			FirstName:    domain.ToNullString(profile.FirstName),
			LastName:     domain.ToNullString(profile.LastName),
			LanguageCode: domain.ToNullString(profile.LanguageCode),
		})
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to create user")
		}
		if err := s.queries.CreateUsageCounters(ctx, repoUser.ID); err != nil {
			return nil, domain.Internal(err, op, "Failed to create usage counters")
		}
		s.logger.Info("telegram user registered", "user_id", repoUser.ID, "telegram_id", profile.TelegramID)
	default:
		return nil, domain.Internal(err, op, "Failed to look up user")
	}

	user, err := s.hydrate(ctx, repoUser)
	if err != nil {
		return nil, err
	}

	token, err := s.createSession(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("telegram user logged in", "user_id", user.ID)
	return &domain.LoginResult{User: user, Token: token}, nil
}

func (s *userService) LoginAdmin(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.LoginAdmin"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a bcrypt comparison so a missing account costs the
			// same time as a wrong password.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(domain.NullStringValue(repoUser.PasswordHash)), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}
	if !repoUser.IsAdmin {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	user, err := s.hydrate(ctx, repoUser)
	if err != nil {
		return nil, err
	}

	token, err := s.createSession(ctx, op, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin logged in", "user_id", user.ID, "email", email)
	return &domain.LoginResult{User: user, Token: token}, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil // idempotent, a malformed token has no session anyway
	}
	if err := s.queries.DeleteSession(ctx, hashSessionToken(token)); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	return nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	return s.hydrate(ctx, repoUser)
}

func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	session, err := s.queries.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to look up session")
	}

	repoUser, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	return s.hydrate(ctx, repoUser)
}

func (s *userService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const op = "UserService.DeleteExpiredSessions"

	n, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to delete expired sessions")
	}
	if n > 0 {
		s.logger.Info("expired sessions cleaned up", "count", n)
	}
	return n, nil
}

func (s *userService) EnsureAdminUser(ctx context.Context, email, password string) error {
	const op = "UserService.EnsureAdminUser"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Invalid(op, "Admin email and password are required")
	}

	_, err := s.queries.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Internal(err, op, "Failed to check admin account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.queries.CreateAdminUser(ctx, repository.CreateAdminUserParams{
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to create admin account")
	}

	s.logger.Info("bootstrap admin provisioned", "user_id", repoUser.ID, "email", email)
	return nil
}

// createSession issues a fresh session token and stores its hash.
func (s *userService) createSession(ctx context.Context, op string, userID uuid.UUID) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    userID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: time.Now().Add(SessionDuration),
	})
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create session")
	}
	return token, nil
}

// hydrate converts a repository user and attaches subscription and trial
// state, which every entitlement check needs.
func (s *userService) hydrate(ctx context.Context, repoUser repository.User) (*domain.User, error) {
	const op = "UserService.hydrate"

	user := repoUserToDomain(repoUser)

	sub, err := s.queries.GetSubscription(ctx, user.ID)
	switch {
	case err == nil:
		user.Subscription = &domain.Subscription{
			Tier:      domain.TierID(sub.Tier),
			ExpiresAt: domain.NullTimeValue(sub.ExpiresAt),
			IsActive:  sub.IsActive,
			StartedAt: sub.StartedAt,
		}
	case errors.Is(err, sql.ErrNoRows):
		// No explicit assignment: every registered user sits on basic.
		user.Subscription = &domain.Subscription{
			Tier:      domain.TierBasic,
			IsActive:  true,
			StartedAt: user.CreatedAt,
		}
	default:
		return nil, domain.Internal(err, op, "Failed to load subscription")
	}

	trial, err := s.queries.GetTrial(ctx, user.ID)
	switch {
	case err == nil:
		user.Trial = &domain.TrialState{
			Used:      trial.Used,
			Tier:      domain.TierID(trial.Tier),
			ExpiresAt: domain.NullTimeValue(trial.ExpiresAt),
		}
	case errors.Is(err, sql.ErrNoRows):
		// No trial row means the trial is still available.
	default:
		return nil, domain.Internal(err, op, "Failed to load trial state")
	}

	return user, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// generateSessionToken creates 32 bytes from crypto/rand, hex-encoded.
func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken hashes a raw token for storage. SHA-256 suffices
// because tokens are high-entropy random values, unlike passwords.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// repoUserToDomain converts a repository.User row to the domain type.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		TelegramID:   u.TelegramID.Int64,
		Username:     domain.NullStringValue(u.Username),
		FirstName:    domain.NullStringValue(u.FirstName),
		LastName:     domain.NullStringValue(u.LastName),
		LanguageCode: domain.NullStringValue(u.LanguageCode),
		IsAdmin:      u.IsAdmin,
		Email:        domain.NullStringValue(u.Email),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
