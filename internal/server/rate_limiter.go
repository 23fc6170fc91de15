package server

import (
	"math"
	"sync"
	"time"
)

// rateLimiter is a token bucket throttling inbound frames on one connection.
// It refills continuously at burst tokens per refill interval.
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	rate   float64 // tokens per second
	last   time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &rateLimiter{
		tokens: float64(burst),
		burst:  float64(burst),
		rate:   float64(burst) / interval.Seconds(),
		last:   time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens = math.Min(rl.burst, rl.tokens+elapsed*rl.rate)
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
