package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Auth checks for a valid Bearer token in the Authorization header. An empty
// key list disables auth (local development).
func Auth(staticKeys []string) gin.HandlerFunc {
	staticMap := make(map[string]bool)
	for _, k := range staticKeys {
		staticMap[k] = true
	}

	return func(c *gin.Context) {
		if len(staticMap) == 0 {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		if !staticMap[parts[1]] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key"})
			return
		}

		c.Next()
	}
}
