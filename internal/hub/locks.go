package hub

import "sync"

// IdentityLocks hands out one mutex per user id. Entries are dropped once
// no goroutine holds or waits on them.
type IdentityLocks struct {
	mu    sync.Mutex
	locks map[int64]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func NewIdentityLocks() *IdentityLocks {
	return &IdentityLocks{locks: make(map[int64]*identityLock)}
}

// Lock blocks until userID's mutex is held and returns its unlock func.
func (l *IdentityLocks) Lock(userID int64) func() {
	l.mu.Lock()
	il, ok := l.locks[userID]
	if !ok {
		il = &identityLock{}
		l.locks[userID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()

		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *IdentityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
