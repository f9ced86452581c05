// Package cache holds the worker's in-process caches. The journal worker uses
// one to drop redelivered events before they reach the database.
package cache

import (
	"context"
	"time"

	"bookkeeper/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps until ctx is done. It always returns nil so it can sit in an
// errgroup next to the consumer.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "removed", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Dedupe remembers event ids for a while so redeliveries can be skipped.
type Dedupe struct {
	seen *LRUCache[struct{}]
}

func NewDedupe(size int, ttl time.Duration) *Dedupe {
	return &Dedupe{seen: NewLRUCache[struct{}](size, ttl)}
}

// FirstSighting records id and reports whether it was not already known.
func (d *Dedupe) FirstSighting(id string) bool {
	return d.seen.SetIfAbsent(id, struct{}{})
}

// Forget drops id so a later delivery is treated as new.
func (d *Dedupe) Forget(id string) {
	d.seen.Delete(id)
}

func (d *Dedupe) CleanExpired() int {
	return d.seen.CleanExpired()
}

func (d *Dedupe) Size() int {
	return d.seen.Size()
}
