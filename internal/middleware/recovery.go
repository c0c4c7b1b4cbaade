package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/response"
)

// Recovery converts panics into a 500 response and logs the error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", r),
					zap.Stack("stack"),
				)
				response.Error(c, errors.ErrInternalServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with RESOURCE_NOT_FOUND. Missing static assets are
// routine so they only log at debug level.
func NotFoundHandler(c *gin.Context) {
	logger.WithModule("http").Debug("resource not found",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	response.Error(c, errors.ErrRouteNotFound)
}
