package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/middleware"
	"github.com/charlesng35/authapp/internal/models"
	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentAccount returns the request principal or writes a 401 and reports false.
func currentAccount(c *gin.Context) (*models.Account, bool) {
	account, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return account, true
}
