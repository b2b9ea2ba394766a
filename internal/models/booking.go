package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is created from an accepted price-quote message. The unique
// index on MessageID guarantees at most one booking per quote, which is
// what makes the conversion safely re-runnable.
type Booking struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChatRoomID uuid.UUID  `gorm:"type:uuid;index;not null" json:"chat_room_id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;index;not null" json:"customer_id"`
	BusinessID *uuid.UUID `gorm:"type:uuid;index" json:"business_id,omitempty"`
	TrainerID  *uuid.UUID `gorm:"type:uuid;index" json:"trainer_id,omitempty"`

	MessageID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"message_id"`

	ServiceDetails datatypes.JSON `json:"service_details"`
	PriceAmount    int64          `gorm:"not null" json:"price_amount"`
	Currency       string         `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`

	Status BookingStatus `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ChatRoom *ChatRoom    `gorm:"foreignKey:ChatRoomID" json:"chat_room,omitempty"`
	Customer *User        `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Message  *ChatMessage `gorm:"foreignKey:MessageID" json:"message,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
