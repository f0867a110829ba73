package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

var (
	errInvalidChannel   = errors.New("invalid channel")
	errChannelForbidden = errors.New("channel not allowed")
	errNoStream         = errors.New("no active SSE connection for this session")
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*realtime.SSEClient // key: session id from the token
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log:     log.With("handler", "RealtimeHandler"),
		Hub:     hub,
		clients: make(map[uuid.UUID]*realtime.SSEClient),
	}
}

// GET /api/sse/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	userID := rd.UserID
	sessionID := rd.SessionID

	h.mu.Lock()
	// A session keeps one stream; a reconnect replaces the old one.
	if existing, ok := h.clients[sessionID]; ok {
		h.Hub.CloseClient(existing)
		delete(h.clients, sessionID)
	}
	client := h.Hub.NewSSEClient(userID)
	h.clients[sessionID] = client
	h.mu.Unlock()

	h.Log.Debug("SSE stream open", "user_id", userID, "client_id", client.ID)
	h.Hub.AddChannel(client, userID.String())

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if h.clients[sessionID] == client {
		delete(h.clients, sessionID)
	}
	h.mu.Unlock()
	h.Hub.CloseClient(client)
}

type channelReq struct {
	Channel  string     `json:"channel"`
	ClientID *uuid.UUID `json:"client_id"`
}

// POST /api/sse/subscribe
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	rd, client, channel, ok := h.resolve(c)
	if !ok {
		return
	}
	h.Hub.AddChannel(client, channel)
	h.Log.Debug("SSE subscribe", "user_id", rd.UserID, "channel", channel)
	response.RespondOK(c, gin.H{"message": "subscribed", "channel": channel})
}

// POST /api/sse/unsubscribe
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	_, client, channel, ok := h.resolve(c)
	if !ok {
		return
	}
	h.Hub.RemoveChannel(client, channel)
	response.RespondOK(c, gin.H{"message": "unsubscribed", "channel": channel})
}

func (h *RealtimeHandler) resolve(c *gin.Context) (*ctxutil.RequestData, *realtime.SSEClient, string, bool) {
	rd, ok := currentUser(c)
	if !ok {
		return nil, nil, "", false
	}
	var req channelReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Channel) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_channel", errInvalidChannel)
		return nil, nil, "", false
	}
	channel := strings.TrimSpace(req.Channel)
	// Guests only hear their own channel; staff may listen to any guest.
	if channel != rd.UserID.String() && !rd.IsStaff() {
		response.RespondError(c, http.StatusForbidden, "forbidden", errChannelForbidden)
		return nil, nil, "", false
	}

	var client *realtime.SSEClient
	if req.ClientID != nil {
		client = h.Hub.Client(rd.UserID, *req.ClientID)
	} else {
		h.mu.RLock()
		client = h.clients[rd.SessionID]
		h.mu.RUnlock()
	}
	if client == nil {
		response.RespondError(c, http.StatusConflict, "no_stream", errNoStream)
		return nil, nil, "", false
	}
	return rd, client, channel, true
}
