package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader = "X-API-Key"
	bearerPrefix = "Bearer "
)

// Authenticate accepts either an API key matching the configured bcrypt
// hash or a bearer token signed with the configured JWT secret.
func Authenticate(cfg auth.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled() {
			slog.Warn("No API credentials configured, rejecting request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "API authentication is not configured",
			})
			return
		}

		if key := c.GetHeader(apiKeyHeader); key != "" {
			if cfg.APIKeyHash == "" || !auth.CheckKey(key, cfg.APIKeyHash) {
				slog.Warn("Invalid API key attempt",
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP())
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			c.Set("subject", "api-key")
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing credentials"})
			return
		}

		claims, err := auth.ValidateToken(cfg, strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			slog.Warn("Invalid bearer token",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("scope", claims.Scope)
		c.Next()
	}
}
