package realtime

type SSEEvent string

const (
	SSEEventChatThreadCreated     SSEEvent = "ChatThreadCreated"
	SSEEventChatThreadUpdated     SSEEvent = "ChatThreadUpdated"
	SSEEventChatThreadDeleted     SSEEvent = "ChatThreadDeleted"
	SSEEventChatMessageCreated    SSEEvent = "ChatMessageCreated"
	SSEEventChatTurnFailed        SSEEvent = "ChatTurnFailed"
	SSEEventServiceRequestUpdated SSEEvent = "ServiceRequestUpdated"
	SSEEventReservationLinked     SSEEvent = "ReservationLinked"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
