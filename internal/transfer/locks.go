package transfer

import "sync"

// accountLocks hands out one mutex per account so transfers touching
// disjoint account pairs never contend with each other.
type accountLocks struct {
	mu    sync.Mutex // protects locks map itself
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.locks[accountID]; !exists {
		l.locks[accountID] = &sync.Mutex{}
	}
	return l.locks[accountID]
}

// lockPair acquires both account locks in ascending id order, never in
// request order, so two transfers crossing the same pair in opposite
// directions cannot deadlock. The returned func releases both locks.
func (l *accountLocks) lockPair(a, b string) func() {
	first, second := l.get(a), l.get(b)
	if b < a {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
