package middleware

import (
	"net/http"
	"sync"

	"github.com/bellhop-dev/bellhop/internal/xhttp"
	"github.com/bellhop-dev/bellhop/internal/xslog"
	"golang.org/x/time/rate"
)

// ipLimiter hands out one token-bucket limiter per client IP, created
// lazily under a double-checked lock.
type ipLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
}

func newIPLimiter(ratePerSec float64, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(ratePerSec),
		burst:    burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.RLock()
	limiter, exists := l.limiters[ip]
	l.mu.RUnlock()

	if exists {
		return limiter.Allow()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists = l.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter.Allow()
}

func RateLimit(ratePerSec float64, burst int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(ratePerSec, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := xhttp.GetRequestIP(r)
			if !limiter.allow(ip) {
				xslog.FromContext(r.Context()).WarnContext(r.Context(), "rate limited",
					xslog.RequestPath(r),
				)
				xhttp.Error(w, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
