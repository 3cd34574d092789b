package handlers

import (
	"net/http"

	"agromart/pkg/token"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// Authenticate checks the bearer token signature and expiry. Session
// revocation is enforced by the marketplace, not here.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := token.FromHeader(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization token required"})
			return
		}
		claims, err := token.Parse(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired session"})
			return
		}
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}
