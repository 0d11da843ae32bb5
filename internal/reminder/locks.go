package reminder

import "sync"

// ruleLocks serializes all mutation of a single rule while letting different
// rules proceed in parallel. Entries are reference counted and dropped when idle.
type ruleLocks struct {
	mu    sync.Mutex
	locks map[string]*ruleLock
}

type ruleLock struct {
	mu   sync.Mutex
	refs int
}

func newRuleLocks() *ruleLocks {
	return &ruleLocks{locks: make(map[string]*ruleLock)}
}

// lock blocks until the caller owns id and returns the matching unlock
func (l *ruleLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &ruleLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// size returns the number of tracked ids (for tests)
func (l *ruleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
