package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/service"
	"github.com/chalkbyte/chalkbyte-api/pkg/config"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
	"github.com/chalkbyte/chalkbyte-api/pkg/response"
)

// RateLimiter throttles requests per caller using fixed windows in Redis.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
type RateLimiter struct {
	client  *redis.Client
	cfg     config.RateLimitConfig
	metrics *service.MetricsService
	logger  *zap.Logger
}

// NewRateLimiter builds a rate limiter backed by the given Redis client.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, metrics *service.MetricsService, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, cfg: cfg, metrics: metrics, logger: logger}
}

// General limits the bulk of the API.
func (rl *RateLimiter) General() gin.HandlerFunc {
	return rl.limit("general", rl.cfg.GeneralBurst)
}

// Auth limits credential endpoints with a stricter budget.
func (rl *RateLimiter) Auth() gin.HandlerFunc {
	return rl.limit("auth", rl.cfg.AuthBurst)
}

func (rl *RateLimiter) limit(bucket string, budget int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.cfg.Enabled || rl.client == nil || budget <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", bucket, callerKey(c))
		count, err := rl.client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis being down must not take the API with it.
			rl.logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(c.Request.Context(), key, rl.cfg.Window)
		}

		if count > int64(budget) {
			rl.metrics.RecordRateLimited(bucket)
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.cfg.Window/time.Second)))
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if claimsValue, ok := c.Get(ContextUserKey); ok {
		if claims, ok := claimsValue.(*models.JWTClaims); ok {
			return "user:" + claims.UserID
		}
	}
	return "ip:" + c.ClientIP()
}
