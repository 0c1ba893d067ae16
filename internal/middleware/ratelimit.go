package middleware

import (
	"net/http"
	"sync"
	"time"
)

type window struct {
	count   int
	started time.Time
}

// RateLimiter caps requests per client IP over a fixed window. It guards the
// credential endpoints, where unthrottled clients could brute-force passwords
// or burn the bcrypt budget.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.sweep()
	return rl
}

// sweep drops stale windows so the map tracks only recently active clients.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.period)
	for range ticker.C {
		rl.mu.Lock()
		for ip, w := range rl.clients {
			if time.Since(w.started) > rl.period {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[ip]
	if !ok || time.Since(w.started) > rl.period {
		rl.clients[ip] = &window{count: 1, started: time.Now()}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
