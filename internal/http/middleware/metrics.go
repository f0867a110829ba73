package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/concierge-backend/internal/observability"
)

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

// Metrics counts requests per route template. Event streams stay open for the
// whole guest session, so they are counted but kept out of the latency histogram.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.ApiInflightInc()
		began := time.Now()
		defer m.ApiInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		code := strconv.Itoa(c.Writer.Status())
		if isEventStream(c) {
			m.CountAPI(c.Request.Method, route, code)
			return
		}
		m.ObserveAPI(c.Request.Method, route, code, time.Since(began))
	}
}

func isEventStream(c *gin.Context) bool {
	return strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")
}
