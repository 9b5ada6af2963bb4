package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: misma ventana fija que RedisLimiter pero con contadores
// in-process. Para dev y tests; no sirve con más de una réplica.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	Max    int64
	Window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, time.Minute),
		Max:    int64(max),
		Window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	l.mu.Lock()
	defer l.mu.Unlock()

	// Add es no-op si la key ya existe en la ventana.
	_ = l.c.Add(k, int64(0), l.Window)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// la key expiró entre Add e Increment; reintentar desde cero
		l.c.Set(k, int64(1), l.Window)
		hits = 1
	}

	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   max64(l.Max-hits, 0),
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = l.Window - now.Sub(winStart)
	}
	return res, nil
}
