package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/models"
	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/response"
)

const (
	CtxPrincipalKey  = "authPrincipal"
	CtxUserIDKey     = "userID"
	CtxRoleKey       = "userRole"
	CtxTokenErrorKey = "authTokenError"
)

// AccountLookup resolves the account named by a token subject.
type AccountLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// Authenticate attaches the bearer's account as the request principal. It never aborts:
// anonymous and rejected requests continue so that RequireAuth can answer definitively.
func Authenticate(codec *iauth.TokenCodec, accounts AccountLookup) gin.HandlerFunc {
	log := logger.WithModule("auth-filter")

	return func(c *gin.Context) {
		attachPrincipal(c, codec, accounts, log)
		c.Next()
	}
}

func attachPrincipal(c *gin.Context, codec *iauth.TokenCodec, accounts AccountLookup, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("authentication filter panicked", zap.Any("error", r), zap.String("path", c.Request.URL.Path))
		}
	}()

	if _, exists := c.Get(CtxPrincipalKey); exists {
		return
	}

	token, ok := iauth.ExtractBearer(c.GetHeader("Authorization"))
	if !ok {
		return
	}

	claims, err := codec.Parse(token)
	if err != nil {
		log.Debug("bearer token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.Set(CtxTokenErrorKey, err)
		return
	}
	if !claims.IsAccess() {
		c.Set(CtxTokenErrorKey, iauth.ErrTokenMalformed)
		return
	}

	account, err := accounts.FindByEmail(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Debug("bearer subject not resolved", zap.String("subject", claims.Subject), zap.Error(err))
		return
	}
	if !codec.Validate(token, account.Email) || !account.Active {
		return
	}

	c.Set(CtxPrincipalKey, account)
	c.Set(CtxUserIDKey, account.ID)
	c.Set(CtxRoleKey, account.Role)
}

// Principal returns the authenticated account attached by Authenticate.
func Principal(c *gin.Context) (*models.Account, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*models.Account)
	return account, ok && account != nil
}

// RequireAuth rejects requests without a principal, distinguishing expired and invalid tokens.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Principal(c); ok {
			c.Next()
			return
		}

		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, unauthenticatedError(c))
		c.Abort()
	}
}

func unauthenticatedError(c *gin.Context) error {
	v, ok := c.Get(CtxTokenErrorKey)
	if !ok {
		return apperrors.ErrUnauthorized
	}
	err, _ := v.(error)
	switch {
	case errors.Is(err, iauth.ErrTokenExpired):
		return apperrors.ErrExpiredToken
	case err != nil:
		return apperrors.ErrInvalidToken
	default:
		return apperrors.ErrUnauthorized
	}
}
