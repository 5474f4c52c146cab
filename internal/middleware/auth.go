package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"planktovision/internal/auth"
)

// userContextKey is the gin context key for the validated admin claims.
const userContextKey = "user"

// RequireAdmin guards admin endpoints with a bearer JWT issued by the
// authenticator. When auth is disabled (no admin password configured) every
// admin request is rejected rather than silently allowed.
func RequireAdmin(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticator.IsEnabled() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access is disabled"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := authenticator.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			}
			return
		}

		c.Set(userContextKey, claims)
		c.Next()
	}
}

// UserFromContext retrieves the validated claims set by RequireAdmin.
func UserFromContext(c *gin.Context) *auth.Claims {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// CORS applies the configured allowed origin to every response and answers
// preflight requests.
func CORS(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
