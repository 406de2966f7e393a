package entitlement

import (
	"sync"

	"github.com/google/uuid"
)

// Locker serializes the check-then-increment sequence per user. Without
// it, two concurrent add requests can both pass the limit check at
// current = limit-1 and push the counter past the cap. Lock scope is one
// user, so unrelated users never contend.
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*userLock)}
}

// Lock acquires the user's lock and returns the release func. Entries
// are removed once the last holder releases, so the map stays bounded by
// the number of in-flight requests.
func (l *Locker) Lock(userID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// WithUser runs fn while holding the user's lock.
func (l *Locker) WithUser(userID uuid.UUID, fn func() error) error {
	unlock := l.Lock(userID)
	defer unlock()
	return fn()
}
