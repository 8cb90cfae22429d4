package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerMiddleware() {
	if s == nil || s.router == nil {
		return
	}
	s.router.Use(gin.Logger(), gin.Recovery(), corsMiddleware())
}

// corsMiddleware allows cross-origin reads when BERTSPAN_CORS_ORIGINS
// names the caller's origin (or "*"). The API is read-only, so GET and
// its preflight are the only methods ever advertised.
func corsMiddleware() gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{})
	for _, part := range strings.Split(os.Getenv("BERTSPAN_CORS_ORIGINS"), ",") {
		switch origin := strings.TrimSpace(part); origin {
		case "":
		case "*":
			allowAll = true
		default:
			allowed[origin] = struct{}{}
		}
	}
	if !allowAll && len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if origin != "" {
			_, ok := allowed[origin]
			switch {
			case allowAll:
				c.Header("Access-Control-Allow-Origin", "*")
			case ok:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if allowAll || ok {
				c.Header("Access-Control-Allow-Methods", http.MethodGet)
				c.Header("Access-Control-Allow-Headers", "X-API-Key")
				c.Header("Access-Control-Max-Age", "3600")
			}
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}

func apiKeyAuthMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Preflight requests carry no credentials.
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if strings.TrimSpace(c.GetHeader("X-API-Key")) != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
