package services

import (
	"sync"
)

// Guard coordinates services that share stores. Ledger mutations hold it
// shared from their first lookup to their last write; category deletion and
// data wipes hold it exclusively, so a reference check cannot race a
// transaction that is about to reference the same category.
type Guard struct {
	structure sync.RWMutex
	accounts  *accountLocks
}

func NewGuard() *Guard {
	return &Guard{accounts: newAccountLocks()}
}

func (g *Guard) shared() func() {
	g.structure.RLock()
	return g.structure.RUnlock
}

func (g *Guard) exclusive() func() {
	g.structure.Lock()
	return g.structure.Unlock
}

// accountLocks hands out one mutex per account id. Mutations that touch an
// account and then persist it hold its lock for the whole sequence.
type accountLocks struct {
	mu   sync.Mutex
	byID map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{byID: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.byID[id]
	if !ok {
		m = &sync.Mutex{}
		l.byID[id] = m
	}
	return m
}

// reset drops every per-account mutex. Callers must hold the Guard
// exclusively so no mutex is in use.
func (l *accountLocks) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID = make(map[string]*sync.Mutex)
}

func (l *accountLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

// lock acquires the account's mutex and returns the matching unlock.
func (l *accountLocks) lock(id string) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}

// lockPair acquires two distinct accounts in id order so opposite transfers
// cannot deadlock.
func (l *accountLocks) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first, second := l.get(a), l.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
