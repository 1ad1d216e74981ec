package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// AdvisorHeader identifies the calling advisor for request limiting.
const AdvisorHeader = "X-Advisor-ID"

// advisorLimiter keeps one token bucket per advisor.
type advisorLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newAdvisorLimiter(r rate.Limit, burst int) *advisorLimiter {
	return &advisorLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (l *advisorLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// middleware rejects requests over the advisor's rate with 429. Requests
// without an advisor header are limited by client address.
func (l *advisorLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdvisorHeader)
		if key == "" {
			key = clientIP(r)
		}
		if !l.get(key).Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: errorBody{Code: "rate_limited", Message: "rate limit exceeded, slow down"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
