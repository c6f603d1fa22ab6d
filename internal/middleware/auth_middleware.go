package middleware

import (
	"net/http"
	"strings"

	"pos_sync_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DeviceAuthMiddleware creates a Gin middleware that requires a valid
// device JWT on every request.
func DeviceAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format. Use Bearer <token>"})
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := utils.ValidateDeviceToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token: " + err.Error()})
			c.Abort()
			return
		}

		// Set device information in the context for downstream handlers
		c.Set("deviceID", claims.DeviceID)
		c.Set("deviceLabel", claims.Label)

		c.Next()
	}
}
