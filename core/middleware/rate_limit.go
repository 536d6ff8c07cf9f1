package middleware

import (
	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimiter hands out one token bucket per client key. The least recently seen
// clients are forgotten once maxTrackedClients is reached.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: clients,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.clients.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.rps, rl.burst)
	if prev, ok, _ := rl.clients.PeekOrAdd(key, limiter); ok {
		return prev
	}
	return limiter
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}
