package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotifChatMessage      NotificationType = "chat_message"
	NotifPriceQuote       NotificationType = "price_quote"
	NotifBookingConfirmed NotificationType = "booking_confirmed"
)

// Notification is an in-app notification row, one per recipient.
type Notification struct {
	ID     uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	Type   NotificationType `gorm:"type:varchar(30);not null" json:"type"`

	Title string `gorm:"type:varchar(150)" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	// ID of the room, message or booking the notification points at.
	ReferenceID *uuid.UUID `gorm:"type:uuid;index" json:"reference_id,omitempty"`

	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}
