package booking

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

// Service turns accepted price-quote messages into bookings. All writes go
// through the caller's transaction so the conversion is all-or-nothing.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// CreateFromQuote creates the booking for a quote message, or returns the
// existing one if the message was converted before. The unique index on
// bookings.message_id is the authoritative duplicate guard: a concurrent
// insert loses the race, hits the constraint and re-reads the winner's row.
// Must be called within a DB transaction.
func (s *Service) CreateFromQuote(tx *gorm.DB, room *models.ChatRoom, msg *models.ChatMessage, quote models.PriceQuote) (*models.Booking, bool, error) {
	if msg.Subtype != models.SubtypePriceQuote || len(msg.PriceQuote) == 0 {
		return nil, false, errors.New("message is not a price quote")
	}
	if quote.Amount <= 0 {
		return nil, false, errors.New("quote amount must be positive")
	}

	var existing models.Booking
	err := tx.First(&existing, "message_id = ?", msg.ID).Error
	if err == nil {
		return &existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	details, err := json.Marshal(map[string]string{
		"service": quote.Service,
		"details": quote.Details,
	})
	if err != nil {
		return nil, false, err
	}

	bk := models.Booking{
		ChatRoomID:     room.ID,
		CustomerID:     room.CustomerID,
		BusinessID:     room.BusinessID,
		TrainerID:      room.TrainerID,
		MessageID:      msg.ID,
		ServiceDetails: details,
		PriceAmount:    quote.Amount,
		Currency:       quote.Currency,
		Status:         models.BookingStatusConfirmed,
	}

	if err := tx.Create(&bk).Error; err != nil {
		if isUniqueViolation(err) {
			var winner models.Booking
			if err2 := tx.First(&winner, "message_id = ?", msg.ID).Error; err2 == nil {
				return &winner, false, nil
			}
		}
		return nil, false, err
	}

	return &bk, true, nil
}

// GetForUser fetches a booking visible to the given user (its customer or
// the owner of the provider profile).
func (s *Service) GetForUser(bookingID, userID uuid.UUID) (*models.Booking, error) {
	var bk models.Booking
	if err := s.DB.
		Preload("ChatRoom").
		Preload("ChatRoom.Business").
		Preload("ChatRoom.Trainer").
		Preload("Message").
		First(&bk, "id = ?", bookingID).Error; err != nil {
		return nil, err
	}

	if bk.CustomerID == userID {
		return &bk, nil
	}
	if bk.ChatRoom != nil && bk.ChatRoom.ProviderUserID() == userID {
		return &bk, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
