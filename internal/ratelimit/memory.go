package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig tunes the process-local limiter.
type MemoryConfig struct {
	// MaxWindow is the longest window any caller uses; older entries are swept.
	MaxWindow       time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
}

// MemoryLimiter keeps cooldown timestamps in a map guarded by a mutex.
type MemoryLimiter struct {
	cfg MemoryConfig

	mu      sync.Mutex
	entries map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter starts the limiter and its background sweep.
func NewMemoryLimiter(cfg MemoryConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.MaxWindow
	}
	l := &MemoryLimiter{
		cfg:     cfg,
		entries: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the background sweep.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *MemoryLimiter) IsThrottled(_ context.Context, key string, window time.Duration) bool {
	l.mu.Lock()
	last, ok := l.entries[key]
	l.mu.Unlock()
	return ok && l.cfg.Now().Sub(last) < window
}

func (l *MemoryLimiter) Mark(_ context.Context, key string) {
	l.mu.Lock()
	l.entries[key] = l.cfg.Now()
	l.mu.Unlock()
}

func (l *MemoryLimiter) Remaining(_ context.Context, key string, window time.Duration) int {
	l.mu.Lock()
	last, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return remainingSeconds(last, l.cfg.Now(), window)
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

// sweep drops entries whose window has passed for every caller.
func (l *MemoryLimiter) sweep() {
	now := l.cfg.Now()
	l.mu.Lock()
	for key, last := range l.entries {
		if now.Sub(last) >= l.cfg.MaxWindow {
			delete(l.entries, key)
		}
	}
	l.mu.Unlock()
}
