package domain

import (
	"testing"
	"time"
)

func TestCounterLookup(t *testing.T) {
	c := &UsageCounters{
		BooksOffline:     1,
		BooksFavorites:   2,
		NashidsOffline:   3,
		NashidsFavorites: 4,
	}

	tests := []struct {
		ct   ContentType
		kind LimitKind
		want int
	}{
		{ContentBooks, LimitOffline, 1},
		{ContentBooks, LimitFavorites, 2},
		{ContentNashids, LimitOffline, 3},
		{ContentNashids, LimitFavorites, 4},
	}

	for _, tt := range tests {
		got, ok := c.Counter(tt.ct, tt.kind)
		if !ok {
			t.Fatalf("Counter(%s, %s) not found", tt.ct, tt.kind)
		}
		if got != tt.want {
			t.Errorf("Counter(%s, %s) = %d, want %d", tt.ct, tt.kind, got, tt.want)
		}
	}

	if _, ok := c.Counter(ContentType("podcasts"), LimitOffline); ok {
		t.Error("unknown content type should not resolve to a counter")
	}
}

func TestApplyFloorsAtZero(t *testing.T) {
	c := &UsageCounters{BooksFavorites: 1}

	c.Apply(ContentBooks, LimitFavorites, -1)
	if c.BooksFavorites != 0 {
		t.Errorf("expected 0 after decrement, got %d", c.BooksFavorites)
	}

	// Redundant decrement is a no-op, never negative.
	c.Apply(ContentBooks, LimitFavorites, -1)
	if c.BooksFavorites != 0 {
		t.Errorf("decrement at zero should stay at zero, got %d", c.BooksFavorites)
	}
}

func TestResetMonthlyZeroesOfflineOnly(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	c := &UsageCounters{
		BooksOffline:     7,
		BooksFavorites:   3,
		NashidsOffline:   9,
		NashidsFavorites: 5,
		ResetDate:        now.AddDate(0, -1, 0),
	}

	c.ResetMonthly(now)

	if c.BooksOffline != 0 || c.NashidsOffline != 0 {
		t.Errorf("offline counters should be zeroed, got books=%d nashids=%d", c.BooksOffline, c.NashidsOffline)
	}
	if c.BooksFavorites != 3 || c.NashidsFavorites != 5 {
		t.Errorf("favorites counters must survive the monthly reset, got books=%d nashids=%d", c.BooksFavorites, c.NashidsFavorites)
	}
	if !c.ResetDate.Equal(now) {
		t.Errorf("reset date not stamped: %v", c.ResetDate)
	}
}

func TestResetDue(t *testing.T) {
	tests := []struct {
		name  string
		reset time.Time
		now   time.Time
		due   bool
	}{
		{
			name:  "same month",
			reset: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2026, time.March, 28, 0, 0, 0, 0, time.UTC),
			due:   false,
		},
		{
			name:  "previous month",
			reset: time.Date(2026, time.February, 27, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			due:   true,
		},
		{
			name:  "previous year, later month",
			reset: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
			now:   time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC),
			due:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &UsageCounters{ResetDate: tt.reset}
			if got := c.ResetDue(tt.now); got != tt.due {
				t.Errorf("ResetDue() = %v, want %v", got, tt.due)
			}
		})
	}
}
