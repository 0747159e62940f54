package http

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// tenantCORSConfig allows browser callers to reach /v1/encryption. Tenant
// identity travels in headers, never cookies, so credentials stay disabled.
func tenantCORSConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE"},
		AllowHeaders:  []string{"Content-Type", "X-Site-Id", "X-Principal-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// createCORSMiddleware returns nil when CORS is off or CORS_ALLOW_ORIGINS has
// no usable entry.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but CORS_ALLOW_ORIGINS is empty, skipping")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))
	return cors.New(tenantCORSConfig(origins))
}

func parseOrigins(s string) []string {
	return strings.FieldsFunc(strings.ReplaceAll(s, " ", ""), func(r rune) bool { return r == ',' })
}
