// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package ratelimit implements per-key token bucket rate limiting.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults applied when a Config field is zero or negative.
const (
	DefaultBurst           = 30
	DefaultPerMinute       = 30.0
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxAge          = time.Hour

	// MinPerMinute keeps a drained bucket refilling.
	MinPerMinute = 1.0
)

// Config configures a Limiter.
type Config struct {
	// Burst is the number of requests a fresh key may make at once.
	Burst int
	// PerMinute is the sustained refill rate.
	PerMinute float64
	// CleanupInterval is how often idle keys are dropped.
	CleanupInterval time.Duration
	// MaxAge is how long a key may stay idle before cleanup removes it.
	MaxAge time.Duration
	// Gauge, when set, tracks the number of keys.
	Gauge prometheus.Gauge
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter tracks one token bucket per key. It is safe for concurrent use.
//
// A background goroutine drops idle keys. Call Close to stop it.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   int
	perSec  float64
	maxAge  time.Duration
	gauge   prometheus.Gauge
	now     func() time.Time

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Limiter and starts its cleanup goroutine.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perMinute < MinPerMinute {
		perMinute = MinPerMinute
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Limiter{
		buckets:  make(map[string]*bucket),
		burst:    burst,
		perSec:   perMinute / 60,
		maxAge:   maxAge,
		gauge:    cfg.Gauge,
		now:      now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop(interval)

	return l
}

// Allow consumes a token for key. When no token is available it returns false
// and the wait until the next token.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		l.updateGauge()
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.perSec
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
	}
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}

	deficit := 1.0 - b.tokens
	return false, time.Duration(deficit / l.perSec * float64(time.Second))
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup removes keys idle for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.now().Add(-maxAge)
	for key, b := range l.buckets {
		if b.lastCheck.Before(threshold) {
			delete(l.buckets, key)
		}
	}
	l.updateGauge()
}

// updateGauge must be called with mu held.
func (l *Limiter) updateGauge() {
	if l.gauge != nil {
		l.gauge.Set(float64(len(l.buckets)))
	}
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.Cleanup(l.maxAge)
		}
	}
}

// Close stops the cleanup goroutine and waits for it to exit. It is safe to
// call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
}
