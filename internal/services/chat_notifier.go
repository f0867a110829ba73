package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

type ChatNotifier interface {
	ThreadCreated(userID uuid.UUID, thread *types.ChatThread)
	ThreadUpdated(userID uuid.UUID, thread *types.ChatThread)
	ThreadDeleted(userID uuid.UUID, threadID uuid.UUID)
	MessageCreated(userID uuid.UUID, threadID uuid.UUID, msg *types.ChatMessage)
	TurnFailed(userID uuid.UUID, threadID uuid.UUID, terr *TurnError)
}

type chatNotifier struct {
	emit SSEEmitter
}

func NewChatNotifier(emit SSEEmitter) ChatNotifier {
	return &chatNotifier{emit: emit}
}

func (n *chatNotifier) send(userID uuid.UUID, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   event,
		Data:    data,
	})
}

func (n *chatNotifier) ThreadCreated(userID uuid.UUID, thread *types.ChatThread) {
	n.send(userID, realtime.SSEEventChatThreadCreated, map[string]any{"thread": thread})
}

func (n *chatNotifier) ThreadUpdated(userID uuid.UUID, thread *types.ChatThread) {
	n.send(userID, realtime.SSEEventChatThreadUpdated, map[string]any{"thread": thread})
}

func (n *chatNotifier) ThreadDeleted(userID uuid.UUID, threadID uuid.UUID) {
	n.send(userID, realtime.SSEEventChatThreadDeleted, map[string]any{"thread_id": threadID})
}

func (n *chatNotifier) MessageCreated(userID uuid.UUID, threadID uuid.UUID, msg *types.ChatMessage) {
	n.send(userID, realtime.SSEEventChatMessageCreated, map[string]any{"thread_id": threadID, "message": msg})
}

func (n *chatNotifier) TurnFailed(userID uuid.UUID, threadID uuid.UUID, terr *TurnError) {
	if terr == nil {
		return
	}
	data := map[string]any{
		"thread_id": threadID,
		"stage":     terr.Stage,
		"scope":     terr.Scope,
		"error":     terr.Err.Error(),
	}
	if terr.UserMessage != nil {
		data["user_message_id"] = terr.UserMessage.ID
	}
	n.send(userID, realtime.SSEEventChatTurnFailed, data)
}

type ConciergeNotifier interface {
	ServiceRequestUpdated(userID uuid.UUID, req *types.ServiceRequest)
	ReservationLinked(userID uuid.UUID, res *types.Reservation)
}

type conciergeNotifier struct {
	emit SSEEmitter
}

func NewConciergeNotifier(emit SSEEmitter) ConciergeNotifier {
	return &conciergeNotifier{emit: emit}
}

func (n *conciergeNotifier) ServiceRequestUpdated(userID uuid.UUID, req *types.ServiceRequest) {
	if n == nil || n.emit == nil || userID == uuid.Nil || req == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventServiceRequestUpdated,
		Data:    map[string]any{"service_request": req},
	})
}

func (n *conciergeNotifier) ReservationLinked(userID uuid.UUID, res *types.Reservation) {
	if n == nil || n.emit == nil || userID == uuid.Nil || res == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventReservationLinked,
		Data:    map[string]any{"reservation": res},
	})
}
