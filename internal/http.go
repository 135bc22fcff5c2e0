package app

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	routes "csv-share-access/internal/routes"

	"github.com/gin-gonic/gin"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "no-referrer")

	// Disable caching
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	// Parse allowed CIDRs
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		localhostCIDRs := []string{"127.0.0.1/8", "::1/128"}
		allowedCIDRs = append(allowedCIDRs, localhostCIDRs...)
	}

	for _, cidr := range allowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, network)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			routes.AbortWithHTTPError(c, http.StatusForbidden, routes.ErrUnauthorized, "Forbidden", "IP_NOT_ALLOWED")
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		routes.AbortWithHTTPError(c, http.StatusForbidden, routes.ErrUnauthorized, "Forbidden", "IP_NOT_ALLOWED")
	}
}

// splitNetworks parses a comma separated CIDR list, ignoring blanks.
func splitNetworks(list string) []string {
	var cidrs []string
	for cidr := range strings.SplitSeq(list, ",") {
		if cidr := strings.TrimSpace(cidr); cidr != "" {
			cidrs = append(cidrs, cidr)
		}
	}
	return cidrs
}

func HTTPServer(s *routes.Server) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = 16 << 20

	r.Use(securityHeaders)
	r.Use(routes.ErrorHandler())

	s.Health(&r.RouterGroup)

	adminGroup := r.Group("/admin")
	if s.Config.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", s.Config.AllowedNetworks)
		adminGroup.Use(IPAccessControl(splitNetworks(s.Config.AllowedNetworks)))
	}
	s.AdminRoutes(adminGroup)

	s.ViewerRoutes(r.Group("/v"))
	s.PushRoutes(r.Group("/api/push"))

	return r
}
