package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RoomType string

const (
	RoomTypeBusiness RoomType = "business"
	RoomTypeTrainer  RoomType = "trainer"
)

type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusClosed   RoomStatus = "closed"
	RoomStatusArchived RoomStatus = "archived"
)

// ChatRoom is a conversation between one customer and one provider.
// Exactly one of BusinessID/TrainerID is set, matching RoomType.
type ChatRoom struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CustomerID uuid.UUID  `gorm:"type:uuid;index;not null" json:"customer_id"`
	BusinessID *uuid.UUID `gorm:"type:uuid;index" json:"business_id,omitempty"`
	TrainerID  *uuid.UUID `gorm:"type:uuid;index" json:"trainer_id,omitempty"`

	RoomType RoomType   `gorm:"type:varchar(20);not null" json:"room_type"`
	Status   RoomStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Customer *User            `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Business *BusinessProfile `gorm:"foreignKey:BusinessID" json:"business,omitempty"`
	Trainer  *TrainerProfile  `gorm:"foreignKey:TrainerID" json:"trainer,omitempty"`
	Messages []ChatMessage    `gorm:"foreignKey:ChatRoomID" json:"messages,omitempty"`
}

func (r *ChatRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// ProviderUserID returns the user id that owns the provider side of the room.
// Callers must have preloaded Business/Trainer.
func (r *ChatRoom) ProviderUserID() uuid.UUID {
	if r.Business != nil {
		return r.Business.UserID
	}
	if r.Trainer != nil {
		return r.Trainer.UserID
	}
	return uuid.Nil
}

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

type MessageSubtype string

const (
	SubtypeNormal     MessageSubtype = "normal"
	SubtypePriceQuote MessageSubtype = "price_quote"
	SubtypeSystem     MessageSubtype = "system"
)

// PriceQuote is the structured payload carried by price_quote messages.
// Amount is in minor currency units (paise for INR).
type PriceQuote struct {
	Service  string `json:"service"`
	Details  string `json:"details,omitempty"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ChatMessage is one entry in a room. PriceQuote is non-null iff
// Subtype is price_quote.
type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatRoomID uuid.UUID `gorm:"type:uuid;index;not null" json:"chat_room_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"sender_id"`

	Message    string         `gorm:"type:text;not null" json:"message"`
	Type       MessageType    `gorm:"column:message_type;type:varchar(20);not null;default:'text'" json:"message_type"`
	Subtype    MessageSubtype `gorm:"column:message_subtype;type:varchar(20);not null;default:'normal'" json:"message_subtype"`
	PriceQuote datatypes.JSON `json:"price_quote,omitempty"`

	IsRead    bool       `gorm:"default:false" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
