package routes

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"csv-share-access/internal/admin"
	"csv-share-access/internal/audit"
	"csv-share-access/internal/cleanup"
	"csv-share-access/internal/config"
	"csv-share-access/internal/crypto"
	"csv-share-access/internal/filestore"
	"csv-share-access/internal/links"
	"csv-share-access/internal/notify"
	"csv-share-access/internal/ratelimit"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/storage"

	"github.com/gin-gonic/gin"
)

// Server holds the collaborators the HTTP handlers work with.
type Server struct {
	Config   *config.Config
	Store    storage.Provider
	Signer   *crypto.Signer
	Admin    *admin.Manager
	Links    *links.Controller
	Recovery *recovery.Service
	Files    *filestore.Vault
	Limiter  ratelimit.Limiter
	Audit    *audit.Logger
	Notifier notify.Notifier
	Janitor  *cleanup.Janitor
}

// fingerprint identifies the calling device.
func fingerprint(c *gin.Context) string {
	return crypto.Fingerprint(c.GetHeader("User-Agent"), c.GetHeader("Accept-Language"), c.ClientIP())
}

// allow counts an attempt and aborts with 429 once the window is spent.
func (s *Server) allow(c *gin.Context, kind, suffix string) bool {
	ok, retryAfter, err := s.Limiter.Allow(c.Request.Context(), ratelimit.Key(kind, c.ClientIP(), suffix))
	if err != nil {
		AbortWithError(c, unavailable(err))
		return false
	}
	if !ok {
		slog.Warn("Rate limit exceeded", "kind", kind, "ip", c.ClientIP())
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
		AbortWithError(c, ErrRateLimited)
		return false
	}
	return true
}

// fail aborts with err, treating unmapped errors as collaborator failures.
func fail(c *gin.Context, err error) {
	AbortWithError(c, unavailable(err))
}

// bindJSON decodes the request body, aborting with 400 on malformed input.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		slog.Debug("Failed to decode request body", "error", err)
		AbortWithError(c, ErrInvalidRequest)
		return false
	}
	return true
}

// sessionID is the admin session id set by RequireAdmin.
func sessionID(c *gin.Context) string {
	return c.GetString(SESSION_CONTEXT_KEY)
}

func (s *Server) audit(c *gin.Context, action audit.Action, details audit.Details) {
	s.Audit.Log(c.Request.Context(), action, details, sessionID(c))
}

// notifyCtx detaches delivery from the request lifetime.
func notifyCtx(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
