package domain

import (
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/domain/concierge"
)

type ChatThread = chat.Thread
type ChatMessage = chat.Message
type ChatRole = chat.Role
type Run = chat.Run
type RunStatus = chat.RunStatus

type Reservation = concierge.Reservation
type ServiceRequest = concierge.ServiceRequest
type ServiceCategory = concierge.Category
type ServiceRequestStatus = concierge.RequestStatus

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&chat.Thread{},
		&chat.Message{},
		&concierge.Reservation{},
		&concierge.ServiceRequest{},
	}
}
