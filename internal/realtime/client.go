package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	closed   sync.Once
	Logger   *logger.Logger
}

func (c *SSEClient) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
