package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
)

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name          string
		requestID     string
		traceID       string
		wantRequestID string
		wantTraceID   string
	}{
		{name: "caller ids kept", requestID: "req-42", traceID: "trace.7", wantRequestID: "req-42", wantTraceID: "trace.7"},
		{name: "missing ids minted", wantRequestID: "", wantTraceID: ""},
		{name: "unsafe ids replaced", requestID: "bad\nline", traceID: strings.Repeat("x", maxInboundIDLen+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen *ctxutil.TraceData
			r := gin.New()
			r.Use(AttachTraceContext())
			r.GET("/api/reservations", func(c *gin.Context) {
				seen = ctxutil.GetTraceData(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/reservations", nil)
			if tc.requestID != "" {
				req.Header.Set(headerRequestID, tc.requestID)
			}
			if tc.traceID != "" {
				req.Header.Set(headerTraceID, tc.traceID)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if seen == nil {
				t.Fatalf("no trace data on request context")
			}
			if seen.RequestID == "" || seen.TraceID == "" {
				t.Fatalf("ids not assigned: %+v", seen)
			}
			if tc.wantRequestID != "" && seen.RequestID != tc.wantRequestID {
				t.Fatalf("request id: got=%q want=%q", seen.RequestID, tc.wantRequestID)
			}
			if tc.wantTraceID != "" && seen.TraceID != tc.wantTraceID {
				t.Fatalf("trace id: got=%q want=%q", seen.TraceID, tc.wantTraceID)
			}
			if tc.wantRequestID == "" && seen.RequestID == tc.requestID {
				t.Fatalf("request id %q should have been replaced", tc.requestID)
			}
			if tc.wantTraceID == "" && seen.TraceID == tc.traceID {
				t.Fatalf("trace id should have been replaced")
			}
			if rec.Header().Get(headerRequestID) != seen.RequestID || rec.Header().Get(headerTraceID) != seen.TraceID {
				t.Fatalf("response headers do not echo ids: %v", rec.Header())
			}
		})
	}
}
