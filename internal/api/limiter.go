package api

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 1
	defaultBurst = 3
)

// limiterPool hands out one token bucket per user.
type limiterPool struct {
	mu    sync.Mutex
	m     map[int64]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{m: make(map[int64]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) get(userID int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[userID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[userID] = l
	return l
}

func (p *limiterPool) Allow(userID int64) bool {
	return p.get(userID).Allow()
}

// forget drops the user's bucket, used on logout.
func (p *limiterPool) forget(userID int64) {
	p.mu.Lock()
	delete(p.m, userID)
	p.mu.Unlock()
}
