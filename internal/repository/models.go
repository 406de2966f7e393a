package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// User mirrors one row of the users table.
type User struct {
	ID           uuid.UUID
	TelegramID   sql.NullInt64
	Username     sql.NullString
	FirstName    sql.NullString
	LastName     sql.NullString
	LanguageCode sql.NullString
	IsAdmin      bool
	Email        sql.NullString
	PasswordHash sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session mirrors one row of the sessions table.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TierSetting mirrors one row of the tier_settings table. The four
// sub-bundles are stored as jsonb and decoded by the catalog source.
type TierSetting struct {
	TierID      string
	DisplayName string
	Limits      pqtype.NullRawMessage
	Access      pqtype.NullRawMessage
	Features    pqtype.NullRawMessage
	Price       pqtype.NullRawMessage
	UpdatedAt   time.Time
}

// UsageCounter mirrors one row of the usage_counters table.
type UsageCounter struct {
	UserID           uuid.UUID
	BooksOffline     int32
	BooksFavorites   int32
	NashidsOffline   int32
	NashidsFavorites int32
	ResetDate        time.Time
}

// Subscription mirrors one row of the subscriptions table.
type Subscription struct {
	UserID    uuid.UUID
	Tier      string
	ExpiresAt sql.NullTime
	IsActive  bool
	StartedAt time.Time
}

// SubscriptionChange mirrors one row of the subscription_history table.
type SubscriptionChange struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FromTier  string
	ToTier    string
	Source    string
	ChangedAt time.Time
}

// Trial mirrors one row of the trials table.
type Trial struct {
	UserID    uuid.UUID
	Used      bool
	Tier      string
	ExpiresAt sql.NullTime
}

// Book mirrors one row of the books table.
type Book struct {
	ID           uuid.UUID
	Title        string
	Author       string
	Description  sql.NullString
	AccessLevel  string
	CoverKey     sql.NullString
	ThumbnailKey sql.NullString
	FileKey      sql.NullString
	PageCount    sql.NullInt32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Nashid mirrors one row of the nashids table.
type Nashid struct {
	ID              uuid.UUID
	Title           string
	Performer       string
	AccessLevel     string
	CoverKey        sql.NullString
	ThumbnailKey    sql.NullString
	AudioKey        sql.NullString
	DurationSeconds sql.NullInt32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LibraryItem mirrors one row of the favorites or offline_items tables.
type LibraryItem struct {
	UserID      uuid.UUID
	ContentType string
	ContentID   uuid.UUID
	CreatedAt   time.Time
}

// Job mirrors one row of the jobs table.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      pqtype.NullRawMessage
	Status       string
	Priority     int32
	ScheduledAt  time.Time
	Attempts     int32
	MaxAttempts  int32
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}
