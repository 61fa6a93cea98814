package service

import "sync"

// sessionLocks serializes mutating operations per session. Sessions never
// block each other; concurrent callers on one session queue on its mutex.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the named session and returns its unlock function.
// Locks stay in the registry for the life of the process.
func (l *sessionLocks) acquire(sessionID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
