package rate

import (
	"context"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// MemoryLimiter: token bucket por clave. Las claves inactivas expiran solas.
type MemoryLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *gocache.Cache
}

// NewMemoryLimiter permite max requests por window, todas disponibles como burst.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		buckets: gocache.New(2*window, window),
	}
}

func (l *MemoryLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.SetDefault(key, lim)
	return lim
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	lim := l.bucket(key)
	now := time.Now()
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return Result{
			Allowed:    false,
			RetryAfter: time.Duration(math.Ceil(delay.Seconds())) * time.Second,
		}, nil
	}
	return Result{
		Allowed:   true,
		Remaining: int64(math.Max(0, math.Floor(lim.TokensAt(now)))),
	}, nil
}

// Noop deja pasar todo.
type Noop struct{}

func (Noop) Allow(context.Context, string) (Result, error) { return Result{Allowed: true}, nil }
