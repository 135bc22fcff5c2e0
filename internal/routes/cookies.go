package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ADMIN_COOKIE_NAME     = "admin_session"
	LINK_COOKIE_PREFIX    = "link_"
	REQUEST_COOKIE_PREFIX = "request_"

	ADMIN_COOKIE_TTL   = 8 * time.Hour
	LINK_COOKIE_TTL    = 30 * 24 * time.Hour
	REQUEST_COOKIE_TTL = 24 * time.Hour
)

func linkCookieName(linkID string) string {
	return LINK_COOKIE_PREFIX + linkID
}

func requestCookieName(linkID string) string {
	return REQUEST_COOKIE_PREFIX + linkID
}

// setCookie writes an httpOnly, SameSite=Strict cookie on "/". The Secure
// flag is only dropped in the dev environment.
func (s *Server) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		name,
		value,
		int(ttl.Seconds()),
		"/",
		"",
		!s.Config.Dev(), // Secure
		true,
	)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", "", !s.Config.Dev(), true)
}

// signedCookie returns the verified value of a signed cookie. A cookie with a
// bad signature is logged by name and treated as absent.
func (s *Server) signedCookie(c *gin.Context, name string) (string, bool) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return "", false
	}
	value, ok := s.Signer.Verify(raw)
	if !ok {
		slog.Error("Cookie signature mismatch", "cookie", name, "path", c.Request.URL.Path, "ip", c.ClientIP())
	}
	return value, ok
}
