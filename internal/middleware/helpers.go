// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetRequestID returns the id assigned by RequestIDMiddleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GetUserID returns the signed-in user id set by Auth.
func GetUserID(c *gin.Context) (string, bool) {
	id, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	s, ok := id.(string)
	return s, ok
}

// IsAuthenticated checks if request passed Auth
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("session_status")
	return exists
}
