package routes

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"csv-share-access/internal/utils"

	"github.com/gin-gonic/gin"
)

const HEALTH_TIMEOUT = 2 * time.Second

func (s *Server) Health(r *gin.RouterGroup) {

	// Report app version and database reachability
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), HEALTH_TIMEOUT)
		defer cancel()

		status := http.StatusOK
		database := "ok"
		if err := s.Store.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status = http.StatusServiceUnavailable
			database = "unavailable"
		}

		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"version":  utils.GetVersion(),
			"database": database,
		})
	})

	// Run a retention pass on demand. Disabled without a cleanup secret.
	r.POST("/health/cleanup", func(c *gin.Context) {
		if s.Config.CleanupSecret == "" {
			AbortWithError(c, ErrNotFound)
			return
		}
		secret := c.Query("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.Config.CleanupSecret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.Janitor.Run(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "removed": result})
	})
}
