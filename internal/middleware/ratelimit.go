// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// attempts is the sliding window of one client on one form.
type attempts struct {
	mu    sync.Mutex
	times []time.Time
}

// RateLimiter throttles form submissions per client and path using a
// sliding window. Idle entries expire from the cache one window after the
// last attempt.
type RateLimiter struct {
	entries *gocache.Cache
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex // serializes entry creation
}

// NewRateLimiter allows limit submissions per window for each client on
// each path.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		entries: gocache.New(window, 5*time.Minute),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Stop drops all tracked clients.
func (rl *RateLimiter) Stop() {
	rl.entries.Flush()
}

// entry returns the window for key, creating it on first use.
func (rl *RateLimiter) entry(key string) *attempts {
	if v, ok := rl.entries.Get(key); ok {
		return v.(*attempts)
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.entries.Get(key); ok {
		return v.(*attempts)
	}
	a := &attempts{}
	rl.entries.Set(key, a, gocache.DefaultExpiration)
	return a
}

// allow records an attempt for key and reports whether it is within the
// limit. Rejected attempts are not recorded.
func (rl *RateLimiter) allow(key string) bool {
	a := rl.entry(key)
	now := rl.now()
	cutoff := now.Add(-rl.window)

	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.times[:0]
	for _, ts := range a.times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	a.times = kept

	if len(a.times) >= rl.limit {
		return false
	}
	a.times = append(a.times, now)
	// Push the expiry forward so an active client keeps its window.
	rl.entries.Set(key, a, gocache.DefaultExpiration)
	return true
}

// tracked reports how many clients currently hold a window, after dropping
// expired ones.
func (rl *RateLimiter) tracked() int {
	rl.entries.DeleteExpired()
	return rl.entries.ItemCount()
}

// Middleware rejects a client's submissions to a path once it exceeds the
// limit. Each path has its own budget so a burst of sign-in attempts does
// not block the contact form.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.URL.Path + "|" + clientIP(r)) {
			w.Header().Set("Retry-After", retryAfter(rl.window))
			http.Error(w, "Too many attempts, please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP returns the caller's address. The leftmost X-Forwarded-For
// entry wins, then X-Real-IP, then the connection address without port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
