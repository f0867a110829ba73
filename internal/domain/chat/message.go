package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_chat_message_thread_seq,priority:1" json:"thread_id"`

	Seq int64 `gorm:"column:seq;not null;uniqueIndex:idx_chat_message_thread_seq,priority:2" json:"seq"`

	Role    Role   `gorm:"column:role;type:text;not null;index" json:"role"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	// Set on assistant replies: the remote run that produced them.
	RemoteRunID string `gorm:"column:remote_run_id;type:text;not null;default:''" json:"remote_run_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string { return "chat_message" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}
