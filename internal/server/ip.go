package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// clientIP returns the caller address: X-Real-IP, then the first hop of
// X-Forwarded-For, then the peer address of the connection.
func clientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.RemoteIP()
}
