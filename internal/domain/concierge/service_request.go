package concierge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusConfirmed  RequestStatus = "confirmed"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition encodes pending -> confirmed -> in_progress -> completed,
// with cancellation allowed from any non-terminal state.
func CanTransition(from, to RequestStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusConfirmed
	case StatusConfirmed:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted
	}
	return false
}

type ServiceRequest struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	ReservationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"reservation_id"`
	Category      Category      `gorm:"column:category;type:text;not null;index" json:"category"`
	Status        RequestStatus `gorm:"column:status;type:text;not null;index" json:"status"`

	// Category-specific options, validated against the catalog before insert.
	Options datatypes.JSON `gorm:"type:jsonb;column:options;not null" json:"options"`

	ScheduledFor time.Time `gorm:"column:scheduled_for;not null;index" json:"scheduled_for"`
	Notes        string    `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ServiceRequest) TableName() string { return "service_request" }

func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}
