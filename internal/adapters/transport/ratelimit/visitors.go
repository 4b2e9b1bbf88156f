package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter
	last    time.Time
}

// Visitors keeps one token bucket per client IP. The LRU bounds memory; a
// visitor idle for longer than ttl starts over with a full bucket.
type Visitors struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *visitor]
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func NewVisitors(limit, burst, cacheSize int, ttl time.Duration) *Visitors {
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	cache, _ := lru.New[string, *visitor](cacheSize)
	return &Visitors{
		cache: cache,
		limit: rate.Limit(limit),
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (v *Visitors) Allow(host string) bool {
	now := v.now()

	v.mu.Lock()
	vis, ok := v.cache.Get(host)
	if !ok || (v.ttl > 0 && now.Sub(vis.last) > v.ttl) {
		vis = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.cache.Add(host, vis)
	}
	vis.last = now
	v.mu.Unlock()

	return vis.limiter.AllowN(now, 1)
}

// Len reports how many client IPs are tracked.
func (v *Visitors) Len() int {
	return v.cache.Len()
}
