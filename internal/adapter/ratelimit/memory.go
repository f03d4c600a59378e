package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryConfig holds configuration for the in-process limiter.
type MemoryConfig struct {
	Limit   int           // requests admitted per window
	Window  time.Duration // length of a fixed window
	MaxKeys int           // upper bound on tracked clients
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is a fixed-window limiter backed by a mutex-guarded map.
// Stale windows are removed by Sweep, and the map never holds more than
// MaxKeys clients.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     MemoryConfig
	windows map[string]*window
	now     func() time.Time
	log     *zap.Logger
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// NewMemoryLimiter creates a new in-process limiter.
func NewMemoryLimiter(cfg MemoryConfig, log *zap.Logger, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit implements Limiter.
func (l *MemoryLimiter) Admit(_ context.Context, key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.cfg.Window)) {
		if !ok && len(l.windows) >= l.cfg.MaxKeys {
			l.makeRoomLocked(now)
		}
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.count >= l.cfg.Limit {
		return Decision{
			Allowed:    false,
			RetryAfter: w.start.Add(l.cfg.Window).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.cfg.Limit - w.count,
	}
}

// Sweep drops every client whose window has expired and returns how many
// were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sweepLocked(now)
}

// Len returns the number of tracked clients.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}

// Run sweeps on every tick until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.log.Debug("rate limiter swept stale clients", zap.Int("removed", removed))
			}
		}
	}
}

func (l *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.cfg.Window)) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// makeRoomLocked frees one slot: expired windows go first, then the client
// whose window started earliest.
func (l *MemoryLimiter) makeRoomLocked(now time.Time) {
	if l.sweepLocked(now) > 0 {
		return
	}

	var (
		oldestKey   string
		oldestStart time.Time
		found       bool
	)
	for key, w := range l.windows {
		if !found || w.start.Before(oldestStart) {
			oldestKey, oldestStart, found = key, w.start, true
		}
	}
	if found {
		delete(l.windows, oldestKey)
		l.log.Warn("rate limiter at capacity, evicted oldest client",
			zap.Int("max_keys", l.cfg.MaxKeys),
		)
	}
}
