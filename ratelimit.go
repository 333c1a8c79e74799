package main

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fixed-window per-IP limiter for the auth endpoints. Windows live in
// memory; restarting the server forgets them, which is acceptable for an
// abuse brake.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateWindow),
	}
}

// allow reports whether ip may proceed, and on refusal how long until the
// window resets. An empty ip is never limited.
func (l *rateLimiter) allow(ip string) (bool, time.Duration) {
	if ip == "" || l.limit <= 0 {
		return true, 0
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[ip]
	if !ok || now.Sub(bucket.start) >= l.window {
		l.pruneLocked(now)
		l.buckets[ip] = &rateWindow{start: now, count: 1}
		return true, 0
	}
	if bucket.count >= l.limit {
		return false, l.window - now.Sub(bucket.start)
	}
	bucket.count++
	return true, 0
}

func (l *rateLimiter) pruneLocked(now time.Time) {
	for ip, bucket := range l.buckets {
		if now.Sub(bucket.start) >= l.window {
			delete(l.buckets, ip)
		}
	}
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
