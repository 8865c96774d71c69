package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// Runtime config keys that override the env defaults for every route.
const (
	KeyRateLimitBucketSize = "RATE_LIMIT_BUCKET_SIZE"
	KeyRateLimitRefillRate = "RATE_LIMIT_REFILL_RATE"

	// Requests no route matched share one bucket per client.
	unmatchedRoute = "<unmatched>"
)

const (
	cleanupInterval = 10 * time.Minute
	clientIdleTTL   = 30 * time.Minute
)

// clientLimiter is one token bucket for a client on a route.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware keeps a token bucket per client IP and route.
type RateLimiterMiddleware struct {
	clients  map[string]*clientLimiter
	mu       sync.Mutex
	cfg      *config.Config
	settings services.ISettingsService
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiterMiddleware creates a limiter and starts its cleanup loop.
// settings may be nil, in which case only the env defaults apply.
func NewRateLimiterMiddleware(cfg *config.Config, settings services.ISettingsService) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:  make(map[string]*clientLimiter),
		cfg:      cfg,
		settings: settings,
		done:     make(chan struct{}),
	}
	go rm.cleanupClients()
	return rm
}

// Stop ends the cleanup loop.
func (rm *RateLimiterMiddleware) Stop() {
	rm.stopOnce.Do(func() { close(rm.done) })
}

// limits resolves the bucket for a route: endpoint override first, then the
// runtime config, then the env defaults.
func (rm *RateLimiterMiddleware) limits(method, route string) (burst int, refill int) {
	burst, refill = rm.cfg.RateLimitBucketSize, rm.cfg.RateLimitRefillRate
	if rm.settings == nil {
		return burst, refill
	}
	burst = rm.settings.GetInt(KeyRateLimitBucketSize, burst)
	refill = rm.settings.GetInt(KeyRateLimitRefillRate, refill)
	if ep := rm.settings.GetEndpointConfig(method, route); ep != nil && ep.RateLimit != nil {
		burst, refill = ep.RateLimit.BucketSize, ep.RateLimit.TokenRefillRate
	}
	return burst, refill
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string, refill, burst int) *rate.Limiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entry, exists := rm.clients[key]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(refill), burst)}
		rm.clients[key] = entry
	} else if entry.limiter.Burst() != burst || entry.limiter.Limit() != rate.Limit(refill) {
		entry.limiter.SetBurst(burst)
		entry.limiter.SetLimit(rate.Limit(refill))
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanupClients periodically drops buckets for clients that went quiet.
func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.done:
			return
		case <-ticker.C:
			rm.mu.Lock()
			count := 0
			for id, client := range rm.clients {
				if time.Since(client.lastSeen) > clientIdleTTL {
					delete(rm.clients, id)
					count++
				}
			}
			rm.mu.Unlock()
			if count > 0 {
				log.Printf("Rate limiter cleanup removed %d old client entries.", count)
			}
		}
	}
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		burst, refill := rm.limits(c.Request.Method, route)
		if burst <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.Request.Method + " " + route
		if !rm.getClientLimiter(key, refill, burst).Allow() {
			log.Printf("Rate limit exceeded for client %s on %s %s", c.ClientIP(), c.Request.Method, route)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
