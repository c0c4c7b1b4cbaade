package app

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
// Gin runs in release mode unless the level is debug.
func ConfigureLogging(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return logger.Init(level)
}
