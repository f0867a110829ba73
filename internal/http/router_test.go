package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatrepo "github.com/yungbote/concierge-backend/internal/data/repos/chat"
	conciergerepo "github.com/yungbote/concierge-backend/internal/data/repos/concierge"
	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	httpH "github.com/yungbote/concierge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/concierge-backend/internal/http/middleware"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/realtime"
	"github.com/yungbote/concierge-backend/internal/services"
)

// stubGateway completes every run immediately with a fixed reply.
type stubGateway struct {
	mu     sync.Mutex
	n      int
	active *chat.Run
}

func (g *stubGateway) CreateThread(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("thread_%d", g.n), nil
}

func (g *stubGateway) SendMessage(ctx context.Context, threadID, text string) (string, error) {
	return "msg_1", nil
}

func (g *stubGateway) StartRun(ctx context.Context, threadID string) (*chat.Run, error) {
	return &chat.Run{ID: "run_" + uuid.NewString()[:8], ThreadID: threadID, Status: chat.RunQueued}, nil
}

func (g *stubGateway) GetRun(ctx context.Context, threadID, runID string) (*chat.Run, error) {
	return &chat.Run{ID: runID, ThreadID: threadID, Status: chat.RunCompleted}, nil
}

func (g *stubGateway) ActiveRun(ctx context.Context, threadID string) (*chat.Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, nil
}

func (g *stubGateway) ExtractReply(ctx context.Context, threadID, runID string) (string, error) {
	return "Of course.", nil
}

type testServer struct {
	engine *gin.Engine
	auth   services.AuthService
	gw     *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.New()
	gw := &stubGateway{}

	hub := realtime.NewSSEHub(log)
	emit := &services.HubEmitter{Hub: hub}
	chatNotify := services.NewChatNotifier(emit)
	conciergeNotify := services.NewConciergeNotifier(emit)

	threadRepo := chatrepo.NewThreadRepo(db, log)
	threads := services.NewThreadStore(log, threadRepo, gw, nil, chatNotify)
	messages := services.NewMessageStore(db, log, threadRepo, chatrepo.NewMessageRepo(db, log))
	poller := services.NewRunPoller(log, gw, services.PollerConfig{Interval: time.Millisecond, MaxAttempts: 3}, metrics)
	conv := services.NewConversationService(log, threads, messages, gw, poller, chatNotify, metrics)

	resRepo := conciergerepo.NewReservationRepo(db, log)
	catalog, err := services.LoadServiceCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	reservations := services.NewReservationService(db, log, resRepo, conciergeNotify)
	requests := services.NewServiceRequestService(log, resRepo, conciergerepo.NewServiceRequestRepo(db, log), catalog, conciergeNotify, metrics)

	auth := services.NewAuthService(log, "test-secret", time.Minute)
	engine := NewRouter(RouterConfig{
		Log:                   log,
		Metrics:               metrics,
		AuthMiddleware:        httpMW.NewAuthMiddleware(log, auth),
		HealthHandler:         httpH.NewHealthHandler(db),
		RealtimeHandler:       httpH.NewRealtimeHandler(log, hub),
		ChatHandler:           httpH.NewChatHandler(log, threads, messages, conv),
		ReservationHandler:    httpH.NewReservationHandler(reservations),
		ServiceRequestHandler: httpH.NewServiceRequestHandler(requests),
		StaffHandler:          httpH.NewStaffHandler(reservations, requests, conv),
	})
	return &testServer{engine: engine, auth: auth, gw: gw}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := s.auth.IssueToken(userID, uuid.New(), role)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(t, nethttp.MethodGet, "/healthcheck", "", nil); rec.Code != nethttp.StatusOK {
		t.Fatalf("healthcheck: got=%d", rec.Code)
	}
	rec := s.do(t, nethttp.MethodGet, "/metrics", "", nil)
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "concierge_http_requests_total") {
		t.Fatalf("metrics: got=%d body has http counter=%v", rec.Code, strings.Contains(rec.Body.String(), "concierge_http_requests_total"))
	}
}

func TestChatRoundTripOverHTTP(t *testing.T) {
	s := newTestServer(t)
	guest := s.token(t, uuid.New(), "guest")

	if rec := s.do(t, nethttp.MethodPost, "/api/chat/messages", "", map[string]string{"content": "hi"}); rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("no token: got=%d", rec.Code)
	}

	rec := s.do(t, nethttp.MethodPost, "/api/chat/messages", guest, map[string]string{"content": "Can I book a boat?"})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("send: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var turn struct {
		Thread struct {
			ID string `json:"id"`
		} `json:"thread"`
		Reply struct {
			Content string `json:"content"`
		} `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if turn.Reply.Content != "Of course." {
		t.Fatalf("reply: got=%q", turn.Reply.Content)
	}

	rec = s.do(t, nethttp.MethodGet, "/api/chat/threads/"+turn.Thread.ID+"/messages", guest, nil)
	var list struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != nethttp.StatusOK || len(list.Messages) != 2 {
		t.Fatalf("list: got=%d messages=%d", rec.Code, len(list.Messages))
	}

	other := s.token(t, uuid.New(), "guest")
	if rec := s.do(t, nethttp.MethodGet, "/api/chat/threads/"+turn.Thread.ID+"/messages", other, nil); rec.Code != nethttp.StatusNotFound {
		t.Fatalf("foreign thread: got=%d want=404", rec.Code)
	}

	if rec := s.do(t, nethttp.MethodPatch, "/api/chat/threads/"+turn.Thread.ID, guest, map[string]string{"title": ""}); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("blank rename: got=%d want=400", rec.Code)
	}
}

func TestBusyThreadIsConflict(t *testing.T) {
	s := newTestServer(t)
	guest := s.token(t, uuid.New(), "guest")
	if rec := s.do(t, nethttp.MethodPost, "/api/chat/messages", guest, map[string]string{"content": "first"}); rec.Code != nethttp.StatusOK {
		t.Fatalf("send: got=%d", rec.Code)
	}

	s.gw.mu.Lock()
	s.gw.active = &chat.Run{ID: "run_x", Status: chat.RunInProgress}
	s.gw.mu.Unlock()

	rec := s.do(t, nethttp.MethodPost, "/api/chat/messages", guest, map[string]string{"content": "second"})
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("busy: got=%d want=409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"assistant_busy"`) || !strings.Contains(rec.Body.String(), `"scope":"turn"`) {
		t.Fatalf("busy body: %s", rec.Body.String())
	}
}

func TestStaffRoutesRequireStaffRole(t *testing.T) {
	s := newTestServer(t)
	guestID := uuid.New()
	guest := s.token(t, guestID, "guest")
	staff := s.token(t, uuid.New(), "staff")

	payload := map[string]any{"reservations": []map[string]any{{
		"confirmation_code": "VS-42",
		"guest_last_name":   "Ng",
		"villa_name":        "Villa Luna",
		"check_in":          time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"check_out":         time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"pin":               "9999",
	}}}
	if rec := s.do(t, nethttp.MethodPost, "/api/staff/reservations/import", guest, payload); rec.Code != nethttp.StatusForbidden {
		t.Fatalf("guest import: got=%d want=403", rec.Code)
	}
	if rec := s.do(t, nethttp.MethodPost, "/api/staff/reservations/import", staff, payload); rec.Code != nethttp.StatusOK {
		t.Fatalf("staff import: got=%d body=%s", rec.Code, rec.Body.String())
	}

	link := map[string]string{"confirmation_code": "vs-42", "last_name": "NG", "pin": "0000"}
	if rec := s.do(t, nethttp.MethodPost, "/api/reservations/link", guest, link); rec.Code != nethttp.StatusNotFound {
		t.Fatalf("wrong pin: got=%d want=404", rec.Code)
	}
	link["pin"] = "9999"
	if rec := s.do(t, nethttp.MethodPost, "/api/reservations/link", guest, link); rec.Code != nethttp.StatusOK {
		t.Fatalf("link: got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := s.do(t, nethttp.MethodPost, "/api/service-requests", guest, map[string]any{
		"category":      "cleaning",
		"options":       map[string]any{"rooms": []string{"kitchen"}},
		"scheduled_for": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create request: got=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ServiceRequest struct {
			ID string `json:"id"`
		} `json:"service_request"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	path := "/api/staff/service-requests/" + created.ServiceRequest.ID + "/status"
	if rec := s.do(t, nethttp.MethodPatch, path, staff, map[string]string{"status": "confirmed"}); rec.Code != nethttp.StatusOK {
		t.Fatalf("confirm: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, nethttp.MethodPatch, path, staff, map[string]string{"status": "pending"}); rec.Code != nethttp.StatusConflict {
		t.Fatalf("backwards: got=%d want=409", rec.Code)
	}
}
