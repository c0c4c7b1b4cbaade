package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/handlers"
)

func registerOAuthRoutes(engine *gin.Engine, handler *handlers.OAuthHandler) {
	engine.GET("/api/auth/oauth/:provider", handler.LoginPath)

	oauth := engine.Group("/api/oauth")
	{
		oauth.GET("/url/:provider", handler.URL)
		oauth.GET("/providers", handler.Providers)
	}

	// Browser-facing redirect endpoints. The callback path is the one registered with providers.
	engine.GET("/oauth2/authorization/:provider", handler.Begin)
	engine.GET("/login/oauth2/code/:provider", handler.Callback)
}
