package concierge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation is a villa stay imported from the property system; guests claim it with a PIN.
type Reservation struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConfirmationCode string     `gorm:"column:confirmation_code;type:text;not null;uniqueIndex" json:"confirmation_code"`
	GuestLastName    string     `gorm:"column:guest_last_name;type:text;not null" json:"guest_last_name"`
	VillaName        string     `gorm:"column:villa_name;type:text;not null" json:"villa_name"`
	CheckIn          time.Time  `gorm:"column:check_in;not null;index" json:"check_in"`
	CheckOut         time.Time  `gorm:"column:check_out;not null" json:"check_out"`
	UserID           *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	PinHash          string     `gorm:"column:pin_hash;type:text;not null" json:"-"`
	LinkedAt         *time.Time `gorm:"column:linked_at" json:"linked_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Reservation) TableName() string { return "reservation" }

func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Active reports whether the stay covers t.
func (r *Reservation) Active(t time.Time) bool {
	return r != nil && !t.Before(r.CheckIn) && t.Before(r.CheckOut)
}
