package entitlement

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLockerSerializesCheckThenIncrement(t *testing.T) {
	locker := NewLocker()
	userID := uuid.New()

	const limit = 5
	const workers = 50

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(userID)
			defer unlock()
			if counter < limit {
				counter++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, counter, "check-then-increment must not overshoot the cap")
}

func TestLockerIndependentUsers(t *testing.T) {
	locker := NewLocker()
	a, b := uuid.New(), uuid.New()

	unlockA := locker.Lock(a)
	// A second user's lock must not block while the first is held.
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock(b)
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestLockerEntriesReleased(t *testing.T) {
	locker := NewLocker()
	userID := uuid.New()

	unlock := locker.Lock(userID)
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks, "released locks must not accumulate")
}
