// Package cache holds session-scoped values in memory: the sessionStorage
// of the terminal client. Everything here is dropped on logout or exit.
package cache

import (
	"time"

	"financeflow/internal/log"
)

// Cache defines a generic session cache
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	// SetUntil stores data until the given instant, capped by the cache TTL.
	SetUntil(key string, data T, until time.Time)
	Delete(key string)
	// Purge drops every entry.
	Purge()
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically evicts expired entries from registered caches.
type Janitor struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Default(log.ComponentSession)
	}
	return &Janitor{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache for periodic cleanup. Call before Start.
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Start begins periodic cleanup of all registered caches
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Evicted expired session entries", log.FieldCount, n)
			}
		case <-j.stopCleanup:
			return
		}
	}
}

// Sweep cleans every registered cache once and returns the eviction count.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the cleanup goroutine started by Start.
func (j *Janitor) Stop() {
	close(j.stopCleanup)
	<-j.cleanupDone
}
