package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"groupfolderMetadata/internal/utils"
)

// RateLimiter implements a per-client token bucket rate limiter
type RateLimiter struct {
	rate       time.Duration
	capacity   int
	tokens     map[string]*TokenBucket
	mutex      sync.RWMutex
	cleanupTtl time.Duration
}

// TokenBucket represents a token bucket for a specific client
type TokenBucket struct {
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int, burstCapacity int) *RateLimiter {
	rate := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimiter{
		rate:       rate,
		capacity:   burstCapacity,
		tokens:     make(map[string]*TokenBucket),
		cleanupTtl: 10 * time.Minute, // Clean up unused buckets after 10 minutes
	}
}

// Allow checks if a request from the given client should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.RLock()
	bucket, exists := rl.tokens[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		// another request may have created it meanwhile
		if bucket, exists = rl.tokens[key]; !exists {
			bucket = &TokenBucket{
				tokens:     rl.capacity,
				lastRefill: time.Now(),
			}
			rl.tokens[key] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.takeToken(rl.rate, rl.capacity)
}

// takeToken attempts to take a token from the bucket
func (tb *TokenBucket) takeToken(refillRate time.Duration, capacity int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed / refillRate)
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > capacity {
			tb.tokens = capacity
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(tokensToAdd) * refillRate)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// StartCleanupRoutine removes idle buckets every interval until ctx is done
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(time.Now())
			}
		}
	}()
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for key, bucket := range rl.tokens {
		bucket.mutex.Lock()
		lastActivity := bucket.lastRefill
		bucket.mutex.Unlock()

		if now.Sub(lastActivity) > rl.cleanupTtl {
			delete(rl.tokens, key)
		}
	}
}

// size returns the number of tracked clients
func (rl *RateLimiter) size() int {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	return len(rl.tokens)
}

// RateLimitMiddleware creates HTTP middleware for rate limiting
func (app *App) RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rateLimitExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ip := getRealIP(r)

			if !limiter.Allow(ip) {
				app.Logger.WithFields(map[string]interface{}{
					"ip":     ip,
					"method": r.Method,
					"path":   r.URL.Path,
				}).Warn("Rate limit exceeded")

				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitExempt reports whether path is called by the host itself or by monitoring
func rateLimitExempt(path string) bool {
	return strings.HasPrefix(path, "/api/hooks/") || path == "/healthz" || path == "/metrics"
}

// getRealIP extracts the real IP address from the request
func getRealIP(r *http.Request) string {
	// Check X-Real-IP header (nginx)
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	// X-Forwarded-For can contain multiple IPs, take the first one
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
