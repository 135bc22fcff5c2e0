package utils

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetBaseURL returns the configured base URL, or one detected from the request.
func GetBaseURL(c *gin.Context, configBaseURL string) string {
	if configBaseURL != "" {
		return strings.TrimRight(configBaseURL, "/")
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

// UrlFor builds an absolute URL for path.
func UrlFor(c *gin.Context, configBaseURL string, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return GetBaseURL(c, configBaseURL) + path
}

// ViewerPath is the public path of a share link.
func ViewerPath(linkID string) string {
	return "/v/" + linkID
}
