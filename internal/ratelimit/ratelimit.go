// Package ratelimit implements per-credential fixed-window admission control.
// Windows are 1 minute wide; the choice of fixed windows over sliding ones is
// deliberate and part of the gateway contract (callers get a hard reset_at).
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

const (
	shardCount = 32
	windowSize = time.Minute
)

type window struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter tracks request counts per credential in fixed 1-minute windows.
// A background sweeper drops expired windows so memory stays bounded under
// a churning credential set.
type Limiter struct {
	shards   [shardCount]*shard
	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func New(sweepInterval time.Duration) *Limiter {
	l := &Limiter{
		stop: make(chan struct{}),
		now:  time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	if sweepInterval <= 0 {
		sweepInterval = windowSize
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// CheckAndIncrement admits or rejects one request for the credential. The
// check and the increment happen under the same shard lock, so concurrent
// callers can never both take the last slot of a window.
func (l *Limiter) CheckAndIncrement(credentialID string, limit int) Decision {
	now := l.now()
	s := l.shardFor(credentialID)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[credentialID]
	if !ok || !w.resetAt.After(now) {
		w = &window{resetAt: now.Truncate(windowSize).Add(windowSize)}
		s.windows[credentialID] = w
	}

	if limit > 0 && w.count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	remaining := limit - w.count
	if limit <= 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining, ResetAt: w.resetAt}
}

// Stop halts the background sweeper.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) shardFor(credentialID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(credentialID))
	return l.shards[h.Sum32()%shardCount]
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes expired windows. Each shard is locked on its own, never the
// whole table, so admission checks on other shards are not held up.
func (l *Limiter) sweep() {
	now := l.now()
	for _, s := range l.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if !w.resetAt.After(now) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}

// size reports the total number of live windows, for tests.
func (l *Limiter) size() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += len(s.windows)
		s.mu.Unlock()
	}
	return total
}
