package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/services"
)

type ChatHandler struct {
	log      *logger.Logger
	threads  services.ThreadStore
	messages services.MessageStore
	conv     services.ConversationService
}

func NewChatHandler(log *logger.Logger, threads services.ThreadStore, messages services.MessageStore, conv services.ConversationService) *ChatHandler {
	return &ChatHandler{
		log:      log.With("handler", "ChatHandler"),
		threads:  threads,
		messages: messages,
		conv:     conv,
	}
}

type threadTitleReq struct {
	Title string `json:"title"`
}

// GET /api/chat/threads
func (h *ChatHandler) ListThreads(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	threads, err := h.threads.List(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"threads": threads})
}

// POST /api/chat/threads
func (h *ChatHandler) CreateThread(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	var req threadTitleReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	thread, err := h.threads.Create(c.Request.Context(), rd.UserID, req.Title)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"thread": thread})
}

// GET /api/chat/threads/current
func (h *ChatHandler) CurrentThread(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	thread, err := h.threads.GetOrCreate(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}

// GET /api/chat/threads/external/:external_id
func (h *ChatHandler) GetThreadByExternalID(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	thread, err := h.threads.GetByExternalID(c.Request.Context(), c.Param("external_id"), rd.UserID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}

// PATCH /api/chat/threads/:id
func (h *ChatHandler) RenameThread(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req threadTitleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	thread, err := h.threads.Rename(c.Request.Context(), rd.UserID, threadID, req.Title)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}

// DELETE /api/chat/threads/:id
func (h *ChatHandler) DeleteThread(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.threads.Delete(c.Request.Context(), rd.UserID, threadID); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/chat/threads/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	thread, err := h.threads.Get(ctx, threadID, rd.UserID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	// A reply that finished after its request gave up is stored before listing.
	if thread.ActiveRunID != "" {
		if _, err := h.conv.Sync(ctx, rd.UserID, threadID); err != nil && !errors.Is(err, apierr.ErrNotFound) {
			h.log.Warn("Sync before list failed", "thread_id", threadID, "error", err)
		}
	}
	msgs, err := h.messages.List(ctx, threadID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	ThreadID *uuid.UUID `json:"thread_id"`
	Content  string     `json:"content"`
}

// POST /api/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.conv.Send(c.Request.Context(), rd.UserID, services.SendInput{
		ThreadID: req.ThreadID,
		Content:  strings.TrimSpace(req.Content),
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/chat/threads/:id/retry
func (h *ChatHandler) RetryReply(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.conv.RetryReply(c.Request.Context(), rd.UserID, threadID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
