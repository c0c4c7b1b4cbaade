package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/response"
)

// NewMemoryLimiter builds an in-process limiter from a formatted rate such as "10-M".
func NewMemoryLimiter(formatted string) (*limiter.Limiter, error) {
	return NewLimiter(memory.NewStore(), formatted)
}

// NewLimiter builds a limiter over store from a formatted rate such as "10-M".
func NewLimiter(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// RateLimit throttles requests per client IP. A nil limiter disables throttling.
func RateLimit(limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiterInstance == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		limit, err := limiterInstance.Get(c.Request.Context(), ip)
		if err != nil {
			logger.WithModule("ratelimit").Error("rate limit lookup failed", zap.String("ip", ip), zap.Error(err))
			response.Error(c, apperrors.ErrInternalServer)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(limit.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limit.Reset, 10))

		if limit.Reached {
			logger.WithModule("ratelimit").Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			response.Error(c, apperrors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
