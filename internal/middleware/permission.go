package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

// RequireRole checks that the authenticated principal holds role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := Principal(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, unauthenticatedError(c))
			c.Abort()
			return
		}
		if account.Role != role {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
