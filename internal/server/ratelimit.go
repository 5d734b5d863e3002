// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package server

import (
	"math"
	"sync"
	"time"
)

// idleBucketTTL is how long an untouched client bucket is kept.
const idleBucketTTL = 10 * time.Minute

// RateLimitConfig configures the per-client token bucket. A non-positive
// PerMinute disables limiting.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// clientRateLimiter keeps one lazily refilled bucket per client key. Refill
// happens on access so idle clients cost nothing.
type clientRateLimiter struct {
	mu        sync.Mutex
	perSecond float64
	burst     float64
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newClientRateLimiter(cfg RateLimitConfig) *clientRateLimiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &clientRateLimiter{
		perSecond: float64(cfg.PerMinute) / 60,
		burst:     float64(burst),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Allow takes one token for key. When none is left it returns false and
// the wait until the next token.
func (r *clientRateLimiter) Allow(key string) (bool, time.Duration) {
	if r == nil {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{tokens: r.burst, lastSeen: now}
		r.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens = math.Min(r.burst, b.tokens+elapsed*r.perSecond)
		b.lastSeen = now
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / r.perSecond * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

func (r *clientRateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < idleBucketTTL {
		return
	}
	r.lastSweep = now
	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > idleBucketTTL {
			delete(r.buckets, key)
		}
	}
}
