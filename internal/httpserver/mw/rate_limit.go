package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

type RateLimitConfig struct {
	PerMinute     int
	Burst         int
	MaxEntries    int
	SweepInterval time.Duration
	IdleTTL       time.Duration
	TrustProxy    bool // resolve IP from proxy headers when true
	Now           func() time.Time
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	limit     rate.Limit
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PerMinute < 1 {
		cfg.PerMinute = 1
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &limiter{
		cfg:       cfg,
		limit:     rate.Limit(float64(cfg.PerMinute) / 60.0),
		visitors:  make(map[string]*visitor, 64),
		lastSweep: cfg.Now(),
	}
}

// reserve takes one token for key. When none is available it returns the
// wait until the next one.
func (l *limiter) reserve(key string, now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval || len(l.visitors) >= l.cfg.MaxEntries {
		l.sweepLocked(now)
	}
	v := l.visitors[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	if v.lim.AllowN(now, 1) {
		return true, int(math.Floor(v.lim.TokensAt(now))), 0
	}
	r := v.lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, 0, wait
}

func (l *limiter) sweepLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

// RateLimit limits requests per client IP with a token bucket.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, l.cfg.TrustProxy)

			ok, remaining, wait := l.reserve(key, l.cfg.Now())
			w.Header().Set("X-RateLimit-Limit", limitStr)
			if !ok {
				sec := int(math.Ceil(wait.Seconds()))
				if sec < 1 {
					sec = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(sec))
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request, trustProxy bool) string {
	return utils.ClientKey(r, trustProxy)
}
