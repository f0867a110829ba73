package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultTitlePrefix = "New Conversation"

// DefaultTitle is the placeholder title given to threads nobody has named yet.
func DefaultTitle(now time.Time) string {
	return DefaultTitlePrefix + " · " + now.UTC().Format("2006-01-02 15:04")
}

type Thread struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID string    `gorm:"column:external_id;type:text;not null;uniqueIndex" json:"external_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"column:title;type:text;not null" json:"title"`

	// Concurrency-safe per-thread sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"-"`

	// Remote run the orchestrator is (or was, before the caller went away) waiting on.
	ActiveRunID string `gorm:"column:active_run_id;type:text;not null;default:''" json:"active_run_id,omitempty"`
	// User message persisted locally whose forward to the assistant failed.
	UndeliveredMessageID *uuid.UUID `gorm:"type:uuid;column:undelivered_message_id" json:"undelivered_message_id,omitempty"`

	LastMessageAt time.Time `gorm:"column:last_message_at;not null;index" json:"last_message_at"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;index;autoUpdateTime:false" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Thread) TableName() string { return "chat_thread" }

func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.LastMessageAt.IsZero() {
		t.LastMessageAt = t.CreatedAt
	}
	return nil
}
