package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"p2p-exchange/config"
	redisStore "p2p-exchange/internal/adapter/storage/redis"
	"p2p-exchange/pkg/apperror"
	"p2p-exchange/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Endpoint groups with their own counters.
const (
	GroupOffers = "offers"
	GroupAccept = "accept"
)

// Limiter counts requests in fixed windows. Implemented by the Redis rate limit store.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules builds the per-group limits from configuration.
func RateLimitRules(cfg config.RateLimitConfig) map[string]RateLimitRule {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return map[string]RateLimitRule{
		GroupOffers: {Limit: cfg.OfferLimit, Window: window},
		GroupAccept: {Limit: cfg.AcceptLimit, Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Limiter failures let the request through.
func RateLimiter(store Limiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated callers by user id and everyone else by IP.
func extractIdentifier(c *gin.Context) string {
	if uid, ok := UserID(c); ok {
		return "user:" + uid.String()
	}
	return "ip:" + c.ClientIP()
}
