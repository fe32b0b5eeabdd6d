package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slackmgr/integrations/service"
	"github.com/slackmgr/integrations/types"
)

// CORS allows the browser frontend to call the API from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// RequestLogger logs every request with its method, path, and for
// non-GET requests the raw body. The body is restored so handlers can
// still bind it.
func RequestLogger(logger types.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := logger.
			WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path)

		if c.Request.Method != http.MethodGet && c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(body))
				entry = entry.WithField("body", string(body))
			}
		}

		entry.Info("Request received")

		c.Next()
	}
}

// Recovery converts a panic into the standard failure envelope instead
// of letting gin return a bare 500.
func Recovery(logger types.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.
			WithField("path", c.Request.URL.Path).
			WithField("panic", recovered).
			Error("Handler panicked")

		c.AbortWithStatusJSON(http.StatusOK, service.Result{
			Done:    false,
			Message: "internal server error",
		})
	})
}
