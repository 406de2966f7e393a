package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "concurrency too low",
			config: Config{
				Concurrency:       0,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
				ScheduleInterval:  time.Minute,
			},
			wantErr: true,
		},
		{
			name: "concurrency too high",
			config: Config{
				Concurrency:       101,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
				ScheduleInterval:  time.Minute,
			},
			wantErr: true,
		},
		{
			name: "poll interval too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      500 * time.Millisecond,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
				ScheduleInterval:  time.Minute,
			},
			wantErr: true,
		},
		{
			name: "schedule interval too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      5 * time.Second,
				JobTimeout:        5 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
				ScheduleInterval:  100 * time.Millisecond,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "wrapped permanent error",
			err:  errors.Join(errors.New("outer"), NewPermanentError(context.Canceled)),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Maintenance job handlers
// ============================================================================

type stubUsageResetter struct {
	count int
	err   error
	calls int
}

func (s *stubUsageResetter) ResetDueCounters(ctx context.Context, now time.Time) (int, error) {
	s.calls++
	return s.count, s.err
}

type stubSessionCleaner struct {
	count int64
	err   error
}

func (s *stubSessionCleaner) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return s.count, s.err
}

type stubSubscriptionExpirer struct {
	count int
	err   error
}

func (s *stubSubscriptionExpirer) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	return s.count, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUsageResetJob(t *testing.T) {
	usage := &stubUsageResetter{count: 4}
	job := NewUsageResetJob(usage, discardLogger())

	if job.Type() != JobTypeUsageReset {
		t.Errorf("Type() = %q", job.Type())
	}
	if err := job.Handle(context.Background(), nil); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if usage.calls != 1 {
		t.Errorf("ResetDueCounters called %d times", usage.calls)
	}
}

func TestUsageResetJob_Error(t *testing.T) {
	usage := &stubUsageResetter{err: errors.New("db down")}
	job := NewUsageResetJob(usage, discardLogger())

	err := job.Handle(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsPermanent(err) {
		t.Error("infrastructure failures should be retryable")
	}
}

func TestSessionCleanupJob(t *testing.T) {
	job := NewSessionCleanupJob(&stubSessionCleaner{count: 12}, discardLogger())

	if job.Type() != JobTypeSessionCleanup {
		t.Errorf("Type() = %q", job.Type())
	}
	if err := job.Handle(context.Background(), nil); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestSubscriptionExpiryJob(t *testing.T) {
	job := NewSubscriptionExpiryJob(&stubSubscriptionExpirer{count: 2}, discardLogger())

	if job.Type() != JobTypeSubscriptionExpiry {
		t.Errorf("Type() = %q", job.Type())
	}
	if err := job.Handle(context.Background(), nil); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestWorker_RegisterAndInvalidConfig(t *testing.T) {
	if _, err := New(nil, nil, Config{}, discardLogger()); err == nil {
		t.Fatal("expected error for zero config")
	}

	w, err := New(nil, nil, DefaultConfig(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	w.Register(NewSessionCleanupJob(&stubSessionCleaner{}, discardLogger()))
	if _, ok := w.handlers[JobTypeSessionCleanup]; !ok {
		t.Error("handler not registered")
	}
}
