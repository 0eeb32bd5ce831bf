package store

import "sync"

// SessionLocks linearizes mutating operations against the same session id,
// so racing deposits cannot both pass the balance check and two distribute
// calls cannot both pay out.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[uint64]*sync.Mutex)}
}

// Lock acquires the lock for a session and returns the unlock func.
func (l *SessionLocks) Lock(sessionID uint64) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = new(sync.Mutex)
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
