package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fitlink-in/fitlink_backend/internal/models"
	"github.com/fitlink-in/fitlink_backend/internal/realtime"
	"github.com/fitlink-in/fitlink_backend/internal/services/booking"
)

type BookingHandler struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	RDB     *redis.Client
	Service *booking.Service
}

func NewBookingHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client, svc *booking.Service) *BookingHandler {
	return &BookingHandler{DB: db, Hub: hub, RDB: rdb, Service: svc}
}

type ConvertQuoteRequest struct {
	MessageID string `json:"message_id"`
}

type BookingResponse struct {
	ID          string    `json:"id"`
	ChatRoomID  string    `json:"chat_room_id"`
	CustomerID  string    `json:"customer_id"`
	BusinessID  *string   `json:"business_id,omitempty"`
	TrainerID   *string   `json:"trainer_id,omitempty"`
	MessageID   string    `json:"message_id"`
	PriceAmount int64     `json:"price_amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`

	ServiceDetails map[string]string `json:"service_details,omitempty"`
}

func toBookingResponse(bk *models.Booking) BookingResponse {
	resp := BookingResponse{
		ID:          bk.ID.String(),
		ChatRoomID:  bk.ChatRoomID.String(),
		CustomerID:  bk.CustomerID.String(),
		MessageID:   bk.MessageID.String(),
		PriceAmount: bk.PriceAmount,
		Currency:    bk.Currency,
		Status:      string(bk.Status),
		CreatedAt:   bk.CreatedAt,
	}
	if bk.BusinessID != nil {
		s := bk.BusinessID.String()
		resp.BusinessID = &s
	}
	if bk.TrainerID != nil {
		s := bk.TrainerID.String()
		resp.TrainerID = &s
	}
	if len(bk.ServiceDetails) > 0 {
		var details map[string]string
		if err := json.Unmarshal(bk.ServiceDetails, &details); err == nil {
			resp.ServiceDetails = details
		}
	}
	return resp
}

// ConvertQuote turns a price-quote message into a confirmed booking inside
// one transaction. Only the room's customer may call it, and converting the
// same quote twice returns the original booking unchanged.
func (h *BookingHandler) ConvertQuote(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	var req ConvertQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}
	msgUUID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid message ID"})
	}

	var room models.ChatRoom
	if err := h.DB.
		Preload("Business").
		Preload("Trainer").
		First(&room, "id = ?", roomUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if room.CustomerID != userUUID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Only the customer can convert a quote"})
	}

	var bk *models.Booking
	var created bool

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var msg models.ChatMessage
		// Lock the quote row so two conversions serialize on it.
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			First(&msg, "id = ? AND chat_room_id = ?", msgUUID, roomUUID).Error; err != nil {
			return fiber.NewError(404, "Quote message not found in this room")
		}

		if msg.Subtype != models.SubtypePriceQuote || len(msg.PriceQuote) == 0 {
			return fiber.NewError(400, "Message is not a price quote")
		}

		var quote models.PriceQuote
		if err := json.Unmarshal(msg.PriceQuote, &quote); err != nil {
			return fiber.NewError(400, "Malformed price quote payload")
		}

		var err error
		bk, created, err = h.Service.CreateFromQuote(tx, &room, &msg, quote)
		if err != nil {
			return err
		}

		if !created {
			// Idempotent replay: no new side effects.
			return nil
		}

		sysMsg := models.ChatMessage{
			ChatRoomID: roomUUID,
			SenderID:   userUUID,
			Message:    "Booking confirmed for " + quote.Service + ".",
			Type:       models.MessageTypeText,
			Subtype:    models.SubtypeSystem,
			IsRead:     false,
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(&sysMsg).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ChatRoom{}).
			Where("id = ?", roomUUID).
			Update("last_message_at", sysMsg.CreatedAt).Error; err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{"success": false, "message": e.Message})
		}
		log.Println("Error converting quote:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create booking"})
	}

	if created {
		h.Hub.SendToRoom(roomUUID, fiber.Map{
			"type":    "booking_confirmed",
			"booking": toBookingResponse(bk),
		})

		providerUserID := room.ProviderUserID()
		if providerUserID != uuid.Nil {
			bkID := bk.ID
			notif := models.Notification{
				UserID:      providerUserID,
				Type:        models.NotifBookingConfirmed,
				Title:       "Booking confirmed",
				Body:        "A customer confirmed a booking from your quote.",
				ReferenceID: &bkID,
			}
			if err := h.DB.Create(&notif).Error; err != nil {
				log.Println("Error creating booking notification:", err)
			}
			realtime.PublishNotification(context.Background(), h.RDB, providerUserID, fiber.Map{
				"type":         "notification",
				"notification": notif,
			})
		}
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"success":    true,
		"booking_id": bk.ID.String(),
		"data":       toBookingResponse(bk),
	})
}

// GetBooking returns one booking visible to the caller.
func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	bookingUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid booking ID"})
	}

	bk, err := h.Service.GetForUser(bookingUUID, userUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Booking not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": toBookingResponse(bk)})
}

// GetRoomBookings lists bookings created from a room's quotes.
func (h *BookingHandler) GetRoomBookings(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	var room models.ChatRoom
	if err := h.DB.
		Preload("Business").
		Preload("Trainer").
		First(&room, "id = ?", roomUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if !isParticipant(&room, userUUID) {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	var bookings []models.Booking
	if err := h.DB.
		Where("chat_room_id = ?", roomUUID).
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		log.Println("Error fetching bookings:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch bookings"})
	}

	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}
