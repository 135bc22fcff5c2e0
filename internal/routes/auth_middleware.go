// Admin authentication middleware
// Checks for a valid admin session cookie bound to the caller's user agent.
// If valid, sets the session id in the context for audit attribution.
// If invalid, aborts with 401 Unauthorized.
package routes

import (
	"log/slog"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/ratelimit"
	"csv-share-access/internal/validate"

	"github.com/gin-gonic/gin"
)

const SESSION_CONTEXT_KEY = "adminSessionID"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validateLogin(req loginRequest) error {
	if err := validate.Email(req.Email); err != nil {
		return err
	}
	return validate.Required("password", req.Password, "Password required")
}

// isAdmin reports whether the request carries a live admin session.
func (s *Server) isAdmin(c *gin.Context) bool {
	cookie, err := c.Cookie(ADMIN_COOKIE_NAME)
	if err != nil || cookie == "" {
		return false
	}
	if !s.Admin.ValidateSession(c.Request.Context(), cookie, c.GetHeader("User-Agent")) {
		return false
	}
	c.Set(SESSION_CONTEXT_KEY, s.Admin.SessionID(cookie))
	return true
}

// RequireAdmin creates middleware that requires an admin session.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.isAdmin(c) {
			slog.Warn("RequireAdmin: Missing or invalid admin session", "ip", c.ClientIP())
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) adminLogin(c *gin.Context) {
	if !s.allow(c, ratelimit.KindAdminLogin, "") {
		return
	}

	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validateLogin(req); err != nil {
		AbortWithError(c, err)
		return
	}

	if !s.Admin.VerifyCredentials(req.Email, req.Password) {
		slog.Warn("Admin login failed", "ip", c.ClientIP())
		AbortWithError(c, ErrInvalidCredentials)
		return
	}

	session, err := s.Admin.CreateSession(c.Request.Context(), c.GetHeader("User-Agent"))
	if err != nil {
		fail(c, err)
		return
	}
	s.setCookie(c, ADMIN_COOKIE_NAME, session.Cookie, ADMIN_COOKIE_TTL)
	c.Set(SESSION_CONTEXT_KEY, session.ID)
	s.audit(c, audit.ActionAdminLogin, audit.Details{"ip": c.ClientIP()})

	c.JSON(200, gin.H{"success": true, "expires_at": session.ExpiresAt})
}

func (s *Server) adminLogout(c *gin.Context) {
	if err := s.Admin.ClearSessions(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	s.audit(c, audit.ActionAdminLogout, nil)
	s.clearCookie(c, ADMIN_COOKIE_NAME)
	c.JSON(200, gin.H{"success": true})
}
