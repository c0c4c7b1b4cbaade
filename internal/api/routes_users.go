package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/handlers"
	"github.com/charlesng35/authapp/internal/middleware"
)

func registerUserRoutes(engine *gin.Engine, handler *handlers.UserHandler) {
	users := engine.Group("/api/users")
	users.Use(middleware.RequireAuth())
	{
		users.GET("/profile", handler.Profile)
		users.PUT("/profile", handler.UpdateProfile)
		users.PUT("/profile/basic", handler.UpdateBasic)
		users.GET("/:id", handler.Get)
	}
}
