package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count int64
	reset time.Time
}

// MemoryLimiter is the single-process fallback used when Redis is not
// configured.
type MemoryLimiter struct {
	mu    sync.Mutex
	items map[string]*entry
	now   func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{items: make(map[string]*entry), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.items[key]
	if !ok || !now.Before(e.reset) {
		e = &entry{reset: windowStart(now, window).Add(window)}
		l.items[key] = e
	}
	e.count++
	return result(e.count, limit, e.reset), nil
}

// Cleanup drops windows that have already reset.
func (l *MemoryLimiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.items {
		if !now.Before(e.reset) {
			delete(l.items, k)
		}
	}
}

// StartCleanupWorker runs Cleanup every interval until ctx is done.
func (l *MemoryLimiter) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
