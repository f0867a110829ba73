package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	maxInboundIDLen = 128
)

// AttachTraceContext gives every request a request id and a trace id, echoes
// both back to the caller and stores them for the request logger. The active
// span wins over a caller-supplied trace id.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := inboundID(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		var traceID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if traceID = inboundID(c.GetHeader(headerTraceID)); traceID == "" {
			traceID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: requestID,
		}))
		c.Set("trace_id", traceID)
		c.Set("request_id", requestID)

		h := c.Writer.Header()
		h.Set(headerTraceID, traceID)
		h.Set(headerRequestID, requestID)
		c.Next()
	}
}

// inboundID keeps a caller-supplied id only when it is short token text.
func inboundID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxInboundIDLen {
		return ""
	}
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return ""
		}
	}
	return raw
}
