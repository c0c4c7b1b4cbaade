package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

const healthPingTimeout = 2 * time.Second

// Health reports readiness. A nil db skips the store check.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(requestContext(c), healthPingTimeout)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				response.Error(c, appErrors.New("SERVICE_UNAVAILABLE", "database is unreachable", http.StatusServiceUnavailable).WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
