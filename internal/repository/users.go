package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, telegram_id, username, first_name, last_name, language_code,
	is_admin, email, password_hash, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.LanguageCode, &u.IsAdmin, &u.Email, &u.PasswordHash,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByTelegramID = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

// GetUserByTelegramID fetches a user by Telegram account id.
func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByTelegramID, telegramID))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

// GetUserByEmail fetches an admin user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const createTelegramUser = `
INSERT INTO users (id, telegram_id, username, first_name, last_name, language_code)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

// CreateTelegramUserParams holds the identity fields of a new Mini App user.
type CreateTelegramUserParams struct {
	TelegramID   int64
	Username     sql.NullString
	FirstName    sql.NullString
	LastName     sql.NullString
	LanguageCode sql.NullString
}

// CreateTelegramUser inserts a new Telegram user.
func (q *Queries) CreateTelegramUser(ctx context.Context, arg CreateTelegramUserParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, createTelegramUser,
		uuid.New(), arg.TelegramID, arg.Username, arg.FirstName, arg.LastName, arg.LanguageCode))
}

const updateTelegramProfile = `
UPDATE users
SET username = $2, first_name = $3, last_name = $4, language_code = $5, updated_at = now()
WHERE id = $1`

// UpdateTelegramProfileParams refreshes profile fields on login.
type UpdateTelegramProfileParams struct {
	ID           uuid.UUID
	Username     sql.NullString
	FirstName    sql.NullString
	LastName     sql.NullString
	LanguageCode sql.NullString
}

// UpdateTelegramProfile refreshes the Telegram profile fields.
func (q *Queries) UpdateTelegramProfile(ctx context.Context, arg UpdateTelegramProfileParams) error {
	_, err := q.db.ExecContext(ctx, updateTelegramProfile,
		arg.ID, arg.Username, arg.FirstName, arg.LastName, arg.LanguageCode)
	return err
}

const createAdminUser = `
INSERT INTO users (id, email, password_hash, is_admin)
VALUES ($1, $2, $3, TRUE)
RETURNING ` + userColumns

// CreateAdminUserParams holds credentials for a provisioned admin account.
type CreateAdminUserParams struct {
	Email        string
	PasswordHash string
}

// CreateAdminUser inserts an admin account.
func (q *Queries) CreateAdminUser(ctx context.Context, arg CreateAdminUserParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, createAdminUser, uuid.New(), arg.Email, arg.PasswordHash))
}

// =============================================================================
// Sessions
// =============================================================================

const createSession = `
INSERT INTO sessions (id, user_id, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token_hash, expires_at, created_at`

// CreateSessionParams holds the fields of a new session row.
type CreateSessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
}

// CreateSession inserts a session row.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, createSession, uuid.New(), arg.UserID, arg.TokenHash, arg.ExpiresAt).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getSessionByTokenHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM sessions
WHERE token_hash = $1 AND expires_at > now()`

// GetSessionByTokenHash fetches a non-expired session by token hash.
func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSession = `DELETE FROM sessions WHERE token_hash = $1`

// DeleteSession removes a session by token hash.
func (q *Queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, tokenHash)
	return err
}

const deleteUserSessions = `DELETE FROM sessions WHERE user_id = $1`

// DeleteUserSessions removes all sessions of one user.
func (q *Queries) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteUserSessions, userID)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= now()`

// DeleteExpiredSessions removes all expired sessions and returns the count.
func (q *Queries) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
