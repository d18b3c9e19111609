package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stagepass/backoffice/pkg/response"
)

// RateLimitConfig holds token bucket settings. The key is the client IP,
// so the limit applies per caller.
type RateLimitConfig struct {
	// RequestsPerSecond is the bucket refill rate (0 disables limiting).
	RequestsPerSecond int
	// BurstSize is the bucket capacity.
	BurstSize int
	// RedisClient enables distributed limiting across replicas. When
	// nil the limiter keeps local per-process buckets.
	RedisClient *redis.Client
	KeyPrefix   string
	// EntryTTL is how long an idle local bucket survives before the
	// cleanup pass drops it.
	EntryTTL time.Duration
}

// DefaultRateLimitConfig returns per-IP limits suited to the sales API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		KeyPrefix:         "ratelimit:",
		EntryTTL:          time.Minute,
	}
}

// tokenBucketScript refills and takes one token atomically. Returns 1
// when the request is allowed.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

tokens = math.min(burst, tokens + (now - last_update) * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end
redis.call("HMSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, 60)
return allowed
`)

type localBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter tracks token buckets per client key.
type RateLimiter struct {
	config  RateLimitConfig
	buckets sync.Map
	stop    chan struct{}
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	rl := &RateLimiter{
		config: config,
		stop:   make(chan struct{}),
	}
	if config.RedisClient == nil {
		go rl.cleanup()
	}
	return rl
}

// Allow reports whether the caller identified by key may proceed.
// Redis errors fail open: the limiter protects against load, not abuse.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.config.RequestsPerSecond <= 0 {
		return true
	}
	if rl.config.RedisClient != nil {
		now := float64(time.Now().UnixNano()) / 1e9
		allowed, err := tokenBucketScript.Run(ctx, rl.config.RedisClient,
			[]string{rl.config.KeyPrefix + key},
			rl.config.RequestsPerSecond, rl.config.BurstSize, now,
		).Int()
		if err != nil {
			return true
		}
		return allowed == 1
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowLocal(key string) bool {
	now := time.Now()
	entry, _ := rl.buckets.LoadOrStore(key, &localBucket{
		tokens:     float64(rl.config.BurstSize),
		lastUpdate: now,
	})
	b := entry.(*localBucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = min(float64(rl.config.BurstSize), b.tokens+elapsed*float64(rl.config.RequestsPerSecond))
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.EntryTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.EntryTTL)
			rl.buckets.Range(func(key, value interface{}) bool {
				b := value.(*localBucket)
				b.mu.Lock()
				stale := b.lastUpdate.Before(cutoff)
				b.mu.Unlock()
				if stale {
					rl.buckets.Delete(key)
				}
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop terminates the local cleanup goroutine.
func (rl *RateLimiter) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}

// RateLimitMiddleware rejects callers that exceed their token bucket
// with 429 and a Retry-After hint.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.Request.Context(), c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerSecond))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.Error(response.ErrCodeTooManyRequests, "Rate limit exceeded, please retry shortly"))
			return
		}
		c.Next()
	}
}
