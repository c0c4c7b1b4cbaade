package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/handlers"
	"github.com/charlesng35/authapp/internal/middleware"
	"github.com/charlesng35/authapp/internal/models"
)

func registerAdminRoutes(engine *gin.Engine, handler *handlers.AdminHandler, security *handlers.SecurityHandler) {
	admin := engine.Group("/api/admin")
	admin.Use(middleware.RequireAuth(), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/stats", handler.Stats)
		admin.GET("/users", handler.ListUsers)
		admin.GET("/users/:id", handler.Get)
		admin.PATCH("/users/:id/status", handler.ToggleStatus)
		admin.DELETE("/users/:id", handler.Delete)
		admin.PUT("/users/:id/profile-image", handler.UpdateProfileImage)
		admin.GET("/security/audit", security.Audit)
	}
}
