package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor holds one client's limiter and last-seen timestamp for eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PromptLimiter applies per-client rate limiting to the recommendation
// endpoint, the only route that fans out to a metered language model call.
type PromptLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
}

// NewPromptLimiter allows r events per second with the given burst. For
// "5 per minute" pass rate.Every(12*time.Second) with burst 5.
func NewPromptLimiter(r rate.Limit, burst int) *PromptLimiter {
	pl := &PromptLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
	}
	go pl.evictLoop()
	return pl
}

func (pl *PromptLimiter) limiterFor(ip string) *rate.Limiter {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	v, ok := pl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(pl.rate, pl.burst)}
		pl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// evictLoop drops clients not seen in the last 10 minutes.
func (pl *PromptLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		pl.mu.Lock()
		for ip, v := range pl.visitors {
			if time.Since(v.lastSeen) > 10*time.Minute {
				delete(pl.visitors, ip)
			}
		}
		pl.mu.Unlock()
	}
}

// Wrap guards the handler, answering 429 when the client is over its limit.
func (pl *PromptLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !pl.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
