package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle keeps one token bucket per client key.
type Throttle struct {
	every time.Duration
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

// NewThrottle allows burst attempts per key, refilled one per every.
// Keys unseen for idle are forgotten by Sweep.
func NewThrottle(every time.Duration, burst int, idle time.Duration) *Throttle {
	return &Throttle{
		every:    every,
		burst:    burst,
		idle:     idle,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

func (t *Throttle) Allow(key string) bool {
	return t.limiter(key).Allow()
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[key] = time.Now()
	if l, ok := t.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(t.every), t.burst)
	t.limiters[key] = l
	return l
}

// Sweep drops keys idle for longer than the configured idle time.
func (t *Throttle) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key, last := range t.lastSeen {
		if now.Sub(last) > t.idle {
			delete(t.limiters, key)
			delete(t.lastSeen, key)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.Sweep(now)
		}
	}
}

// Len returns the number of tracked keys.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}
