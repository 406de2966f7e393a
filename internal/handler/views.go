package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/domain"
)

// View types shape API responses. They exist so that domain fields like
// password hashes or storage keys never leak through encoding/json by
// accident.

type userView struct {
	ID           uuid.UUID         `json:"id"`
	TelegramID   int64             `json:"telegramId,omitempty"`
	Username     string            `json:"username,omitempty"`
	FirstName    string            `json:"firstName,omitempty"`
	LastName     string            `json:"lastName,omitempty"`
	LanguageCode string            `json:"languageCode,omitempty"`
	IsAdmin      bool              `json:"isAdmin"`
	Tier         domain.TierID     `json:"tier"`
	Subscription *subscriptionView `json:"subscription,omitempty"`
	Trial        *trialView        `json:"trial,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type subscriptionView struct {
	Tier      domain.TierID `json:"tier"`
	IsActive  bool          `json:"isActive"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
}

type trialView struct {
	Used      bool          `json:"used"`
	Tier      domain.TierID `json:"tier,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

func newUserView(u *domain.User) userView {
	v := userView{
		ID:           u.ID,
		TelegramID:   u.TelegramID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
		IsAdmin:      u.IsAdmin,
		Tier:         domain.TierBasic,
		CreatedAt:    u.CreatedAt,
	}
	if tier, ok := u.CurrentTier(); ok {
		v.Tier = tier
	}
	if u.Subscription != nil {
		v.Subscription = &subscriptionView{
			Tier:      u.Subscription.Tier,
			IsActive:  u.Subscription.IsActive,
			ExpiresAt: u.Subscription.ExpiresAt,
			StartedAt: u.Subscription.StartedAt,
		}
	}
	if u.Trial != nil {
		v.Trial = &trialView{
			Used:      u.Trial.Used,
			Tier:      u.Trial.Tier,
			ExpiresAt: u.Trial.ExpiresAt,
		}
	}
	return v
}

type bookView struct {
	ID           uuid.UUID          `json:"id"`
	Title        string             `json:"title"`
	Author       string             `json:"author"`
	Description  string             `json:"description,omitempty"`
	AccessLevel  domain.AccessLevel `json:"accessLevel"`
	PageCount    int                `json:"pageCount,omitempty"`
	CoverURL     string             `json:"coverUrl,omitempty"`
	ThumbnailURL string             `json:"thumbnailUrl,omitempty"`
	HasFile      bool               `json:"hasFile"`
	Accessible   bool               `json:"accessible"`
	CreatedAt    time.Time          `json:"createdAt"`
}

type nashidView struct {
	ID              uuid.UUID          `json:"id"`
	Title           string             `json:"title"`
	Performer       string             `json:"performer"`
	AccessLevel     domain.AccessLevel `json:"accessLevel"`
	DurationSeconds int                `json:"durationSeconds,omitempty"`
	CoverURL        string             `json:"coverUrl,omitempty"`
	ThumbnailURL    string             `json:"thumbnailUrl,omitempty"`
	HasAudio        bool               `json:"hasAudio"`
	Accessible      bool               `json:"accessible"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type libraryEntryView struct {
	ContentType domain.ContentType `json:"contentType"`
	ContentID   uuid.UUID          `json:"contentId"`
	AddedAt     time.Time          `json:"addedAt"`
}

func newLibraryViews(entries []domain.LibraryEntry) []libraryEntryView {
	out := make([]libraryEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, libraryEntryView{
			ContentType: e.ContentType,
			ContentID:   e.ContentID,
			AddedAt:     e.AddedAt,
		})
	}
	return out
}

type historyEntryView struct {
	FromTier  domain.TierID `json:"fromTier"`
	ToTier    domain.TierID `json:"toTier"`
	Source    string        `json:"source"`
	ChangedAt time.Time     `json:"changedAt"`
}

func newHistoryViews(changes []domain.SubscriptionChange) []historyEntryView {
	out := make([]historyEntryView, 0, len(changes))
	for _, c := range changes {
		out = append(out, historyEntryView{
			FromTier:  c.FromTier,
			ToTier:    c.ToTier,
			Source:    c.Source,
			ChangedAt: c.ChangedAt,
		})
	}
	return out
}
