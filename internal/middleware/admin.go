package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/es0612/health-insight-go/internal/config"
)

// AdminMiddleware guards operational endpoints with an API key. Only the
// bcrypt hash of the key is kept in configuration.
type AdminMiddleware struct {
	keyHash []byte
}

// NewAdminMiddleware creates a new admin authentication middleware.
func NewAdminMiddleware(cfg config.SecurityConfig) *AdminMiddleware {
	return &AdminMiddleware{
		keyHash: []byte(cfg.AdminKeyHash),
	}
}

// RequireAdminAuth validates the admin API key from the Authorization header
// or the X-API-Key header. Without a configured key hash every request is
// rejected.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) == 2 && strings.ToLower(tokenParts[0]) == "bearer" {
				if am.ValidateAdminKey(tokenParts[1]) {
					c.Next()
					return
				}
			}
		}

		if am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
		c.Abort()
	}
}

// ValidateAdminKey checks a candidate key against the configured hash.
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if len(am.keyHash) == 0 || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(am.keyHash, []byte(key)) == nil
}
