package policy

import "sync"

// accountLocks serializes slot allocation per account. Two concurrent
// Schedule or AutoScheduleProject calls for the same account would
// otherwise both pick the same "next free" timestamp; cross-account
// calls never share a lock.
//
// Publish network calls run outside these locks.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: map[string]*sync.Mutex{}}
}

// acquire locks the account's mutex and returns the release function
func (l *accountLocks) acquire(accountID string) func() {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
