package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fitlink-in/fitlink_backend/internal/models"
	"github.com/fitlink-in/fitlink_backend/internal/realtime"
)

type ChatHandler struct {
	DB  *gorm.DB
	Hub *realtime.Hub
	RDB *redis.Client
}

func NewChatHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *ChatHandler {
	return &ChatHandler{DB: db, Hub: hub, RDB: rdb}
}

// MessageResponse is the wire DTO for a chat message.
type MessageResponse struct {
	ID         string             `json:"id"`
	ChatRoomID string             `json:"chat_room_id"`
	SenderID   string             `json:"sender_id"`
	Message    string             `json:"message"`
	Type       string             `json:"message_type"`
	Subtype    string             `json:"message_subtype"`
	PriceQuote *models.PriceQuote `json:"price_quote,omitempty"`
	IsRead     bool               `json:"is_read"`
	CreatedAt  time.Time          `json:"created_at"`
}

func toMessageResponse(msg *models.ChatMessage) MessageResponse {
	resp := MessageResponse{
		ID:         msg.ID.String(),
		ChatRoomID: msg.ChatRoomID.String(),
		SenderID:   msg.SenderID.String(),
		Message:    msg.Message,
		Type:       string(msg.Type),
		Subtype:    string(msg.Subtype),
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}

	if msg.Subtype == models.SubtypePriceQuote && len(msg.PriceQuote) > 0 {
		var q models.PriceQuote
		if err := json.Unmarshal(msg.PriceQuote, &q); err == nil {
			resp.PriceQuote = &q
		}
	}

	return resp
}

type CreateRoomRequest struct {
	BusinessID *string `json:"business_id"`
	TrainerID  *string `json:"trainer_id"`
}

// CreateOrGetRoom creates a chat room between the caller (customer side)
// and a provider, or returns the existing active one.
func (h *ChatHandler) CreateOrGetRoom(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	if (req.BusinessID == nil) == (req.TrainerID == nil) {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Exactly one of business_id or trainer_id is required",
		})
	}

	room := models.ChatRoom{
		CustomerID:    userUUID,
		Status:        models.RoomStatusActive,
		LastMessageAt: time.Now(),
	}

	var lookup *gorm.DB
	if req.BusinessID != nil {
		bizUUID, err := uuid.Parse(*req.BusinessID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid business ID"})
		}

		var biz models.BusinessProfile
		if err := h.DB.First(&biz, "id = ?", bizUUID).Error; err != nil {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Business not found"})
		}
		if biz.UserID == userUUID {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Cannot open a room with your own profile"})
		}

		room.RoomType = models.RoomTypeBusiness
		room.BusinessID = &bizUUID
		lookup = h.DB.Where("customer_id = ? AND business_id = ? AND status = ?",
			userUUID, bizUUID, models.RoomStatusActive)
	} else {
		trainerUUID, err := uuid.Parse(*req.TrainerID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid trainer ID"})
		}

		var trainer models.TrainerProfile
		if err := h.DB.First(&trainer, "id = ?", trainerUUID).Error; err != nil {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "Trainer not found"})
		}
		if trainer.UserID == userUUID {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Cannot open a room with your own profile"})
		}

		room.RoomType = models.RoomTypeTrainer
		room.TrainerID = &trainerUUID
		lookup = h.DB.Where("customer_id = ? AND trainer_id = ? AND status = ?",
			userUUID, trainerUUID, models.RoomStatusActive)
	}

	var existing models.ChatRoom
	err = lookup.Order("updated_at DESC").First(&existing).Error

	created := false
	switch {
	case err == nil:
		room = existing
	case err == gorm.ErrRecordNotFound:
		if err := h.DB.Create(&room).Error; err != nil {
			log.Println("Error creating chat room:", err)
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create chat room"})
		}
		created = true
	default:
		log.Println("Error fetching chat room:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch chat room"})
	}

	return c.JSON(fiber.Map{"success": true, "created": created, "data": room})
}

// CounterpartOut describes the other side of a room for the directory.
type CounterpartOut struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
	Category string `json:"category,omitempty"`
}

type RoomOut struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	BusinessID    *string   `json:"business_id,omitempty"`
	TrainerID     *string   `json:"trainer_id,omitempty"`
	RoomType      string    `json:"room_type"`
	Status        string    `json:"status"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`

	Counterpart *CounterpartOut  `json:"counterpart,omitempty"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
}

// GetRooms returns the caller's room directory: rooms where they are the
// customer plus rooms on profiles they own, deduped and sorted by recency.
func (h *ChatHandler) GetRooms(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	base := h.DB.
		Preload("Customer").
		Preload("Business").
		Preload("Trainer").
		Where("status = ?", models.RoomStatusActive)

	var asCustomer []models.ChatRoom
	if err := base.Session(&gorm.Session{}).
		Where("customer_id = ?", userUUID).
		Find(&asCustomer).Error; err != nil {
		log.Println("Error fetching customer rooms:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch chat rooms"})
	}

	// Provider side: rooms attached to any profile the caller owns.
	var bizIDs []uuid.UUID
	h.DB.Model(&models.BusinessProfile{}).Where("user_id = ?", userUUID).Pluck("id", &bizIDs)
	var trainerIDs []uuid.UUID
	h.DB.Model(&models.TrainerProfile{}).Where("user_id = ?", userUUID).Pluck("id", &trainerIDs)

	var asProvider []models.ChatRoom
	if len(bizIDs) > 0 || len(trainerIDs) > 0 {
		if err := base.Session(&gorm.Session{}).
			Where("business_id IN ? OR trainer_id IN ?", bizIDs, trainerIDs).
			Find(&asProvider).Error; err != nil {
			log.Println("Error fetching provider rooms:", err)
			return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch chat rooms"})
		}
	}

	rooms := MergeRooms(asCustomer, asProvider)

	out := make([]RoomOut, 0, len(rooms))
	for _, room := range rooms {
		var unreadCount int64
		h.DB.Model(&models.ChatMessage{}).
			Where("chat_room_id = ? AND sender_id != ? AND is_read = false", room.ID, userUUID).
			Count(&unreadCount)

		var last models.ChatMessage
		var lastPtr *MessageResponse
		if err := h.DB.
			Where("chat_room_id = ?", room.ID).
			Order("created_at DESC, id DESC").
			Limit(1).
			First(&last).Error; err == nil {
			resp := toMessageResponse(&last)
			lastPtr = &resp
		}

		entry := RoomOut{
			ID:            room.ID.String(),
			CustomerID:    room.CustomerID.String(),
			RoomType:      string(room.RoomType),
			Status:        string(room.Status),
			LastMessageAt: room.LastMessageAt,
			UnreadCount:   unreadCount,
			LastMessage:   lastPtr,
		}
		if room.BusinessID != nil {
			s := room.BusinessID.String()
			entry.BusinessID = &s
		}
		if room.TrainerID != nil {
			s := room.TrainerID.String()
			entry.TrainerID = &s
		}

		entry.Counterpart = counterpartFor(&room, userUUID)

		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// counterpartFor picks the display identity of the other party: the
// provider profile when the viewer is the customer, the customer otherwise.
func counterpartFor(room *models.ChatRoom, viewer uuid.UUID) *CounterpartOut {
	if room.CustomerID == viewer && room.ProviderUserID() != viewer {
		if room.Business != nil {
			return &CounterpartOut{
				Name:     room.Business.Name,
				PhotoURL: room.Business.PhotoURL,
				Category: string(room.Business.Category),
			}
		}
		if room.Trainer != nil {
			return &CounterpartOut{
				Name:     room.Trainer.DisplayName,
				PhotoURL: room.Trainer.PhotoURL,
				Category: room.Trainer.Specialty,
			}
		}
		return nil
	}
	if room.Customer != nil {
		return &CounterpartOut{Name: room.Customer.Name}
	}
	return nil
}

func (h *ChatHandler) loadRoom(roomID uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := h.DB.
		Preload("Business").
		Preload("Trainer").
		First(&room, "id = ?", roomID).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// GetMessages returns all messages of a room ordered by creation time,
// with id as tie-break for identical timestamps.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	room, err := h.loadRoom(roomUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if !isParticipant(room, userUUID) {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	var messages []models.ChatMessage
	if err := h.DB.
		Where("chat_room_id = ?", roomUUID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		log.Println("Error fetching messages:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch messages"})
	}

	responses := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, toMessageResponse(&messages[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": responses})
}

// SendMessage inserts a plain text message. Local/remote listeners only
// hear about it after the write is acknowledged.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Message text is required"})
	}

	room, err := h.loadRoom(roomUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if !isParticipant(room, userUUID) {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	msg := models.ChatMessage{
		ChatRoomID: roomUUID,
		SenderID:   userUUID,
		Message:    strings.TrimSpace(req.Message),
		Type:       models.MessageTypeText,
		Subtype:    models.SubtypeNormal,
		IsRead:     false,
	}

	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating message:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to send message"})
	}

	h.afterMessageInsert(room, &msg, models.NotifChatMessage, "New message")

	return c.JSON(fiber.Map{"success": true, "data": toMessageResponse(&msg)})
}

// SendPriceQuote inserts a price_quote message carrying the structured
// payload plus a derived human-readable summary.
func (h *ChatHandler) SendPriceQuote(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	var quote models.PriceQuote
	if err := c.BodyParser(&quote); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	if err := ValidateQuote(&quote); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	room, err := h.loadRoom(roomUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if !isParticipant(room, userUUID) {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	payload, err := json.Marshal(quote)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to encode quote"})
	}

	msg := models.ChatMessage{
		ChatRoomID: roomUUID,
		SenderID:   userUUID,
		Message:    QuoteSummary(quote),
		Type:       models.MessageTypeText,
		Subtype:    models.SubtypePriceQuote,
		PriceQuote: payload,
		IsRead:     false,
	}

	if err := h.DB.Create(&msg).Error; err != nil {
		log.Println("Error creating price quote:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to send price quote"})
	}

	h.afterMessageInsert(room, &msg, models.NotifPriceQuote, "New price quote")

	return c.Status(201).JSON(fiber.Map{"success": true, "data": toMessageResponse(&msg)})
}

// afterMessageInsert runs the post-write fanout: bump the room, broadcast
// to room subscribers, store a notification for the other party and
// publish it on Redis for other instances.
func (h *ChatHandler) afterMessageInsert(room *models.ChatRoom, msg *models.ChatMessage, notifType models.NotificationType, title string) {
	if err := h.DB.Model(&models.ChatRoom{}).
		Where("id = ?", room.ID).
		Update("last_message_at", msg.CreatedAt).Error; err != nil {
		log.Println("Error bumping room:", err)
	}

	h.Hub.SendToRoom(room.ID, fiber.Map{
		"type":    "new_message",
		"message": toMessageResponse(msg),
	})

	recipientID := room.CustomerID
	if msg.SenderID == room.CustomerID {
		recipientID = room.ProviderUserID()
	}
	if recipientID == uuid.Nil {
		return
	}

	roomID := room.ID
	notif := models.Notification{
		UserID:      recipientID,
		Type:        notifType,
		Title:       title,
		Body:        msg.Message,
		ReferenceID: &roomID,
	}
	if err := h.DB.Create(&notif).Error; err != nil {
		log.Println("Error creating notification:", err)
	}

	realtime.PublishNotification(context.Background(), h.RDB, recipientID, fiber.Map{
		"type":         "notification",
		"notification": notif,
	})
}

// MarkRead flips is_read on every message in the room not authored by the
// caller. Re-running it is a no-op.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	roomUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid room ID"})
	}

	room, err := h.loadRoom(roomUUID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Room not found"})
	}

	if !isParticipant(room, userUUID) {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	if err := h.DB.Model(&models.ChatMessage{}).
		Where("chat_room_id = ? AND sender_id != ? AND is_read = false", roomUUID, userUUID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		}).Error; err != nil {
		log.Println("Error marking messages as read:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to mark messages as read"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetUnreadTotal counts unread messages addressed to the caller across all
// rooms they participate in.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var bizIDs []uuid.UUID
	h.DB.Model(&models.BusinessProfile{}).Where("user_id = ?", userUUID).Pluck("id", &bizIDs)
	var trainerIDs []uuid.UUID
	h.DB.Model(&models.TrainerProfile{}).Where("user_id = ?", userUUID).Pluck("id", &trainerIDs)

	var count int64
	err = h.DB.Model(&models.ChatMessage{}).
		Joins("JOIN chat_rooms ON chat_messages.chat_room_id = chat_rooms.id").
		Where("(chat_rooms.customer_id = ? OR chat_rooms.business_id IN ? OR chat_rooms.trainer_id IN ?)"+
			" AND chat_messages.sender_id != ? AND chat_messages.is_read = false",
			userUUID, bizIDs, trainerIDs, userUUID).
		Count(&count).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to count unread messages"})
	}

	return c.JSON(fiber.Map{"success": true, "data": count})
}

// wsFrame is what clients send over the socket: room subscriptions and
// keepalive pongs.
type wsFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
}

// WebSocketHandler manages one realtime connection. Clients subscribe to
// rooms explicitly; membership is checked against the database before the
// subscription is registered.
func (h *ChatHandler) WebSocketHandler(c *websocket.Conn) {
	userID := c.Query("user_id")
	if userID == "" {
		log.Println("WebSocket: user_id parameter missing")
		c.Close()
		return
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		log.Println("WebSocket: invalid user_id:", userID, "error:", err)
		c.Close()
		return
	}

	log.Printf("WebSocket: user %s connected\n", userID)

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userUUID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("WebSocket: user %s disconnected\n", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := client.Conn.WriteText(msg); err != nil {
				log.Println("WebSocket write error:", err)
				return
			}
		}
	}()

	for {
		var frame wsFrame
		if err := c.ReadJSON(&frame); err != nil {
			log.Printf("WebSocket read error for user %s: %v\n", userID, err)
			break
		}

		switch frame.Type {
		case "subscribe":
			roomUUID, err := uuid.Parse(frame.RoomID)
			if err != nil {
				continue
			}
			room, err := h.loadRoom(roomUUID)
			if err != nil || !isParticipant(room, userUUID) {
				log.Printf("WebSocket: user %s denied subscription to room %s\n", userID, frame.RoomID)
				continue
			}
			h.Hub.Subscribe(client, roomUUID)
		case "unsubscribe":
			roomUUID, err := uuid.Parse(frame.RoomID)
			if err != nil {
				continue
			}
			h.Hub.Unsubscribe(client, roomUUID)
		case "pong":
			// keepalive, nothing to do
		}
	}
}

// StartRoomArchiveWorker archives rooms with no activity for 90 days.
func (h *ChatHandler) StartRoomArchiveWorker() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			cutoff := time.Now().Add(-90 * 24 * time.Hour)
			res := h.DB.Model(&models.ChatRoom{}).
				Where("status = ? AND last_message_at <= ?", models.RoomStatusActive, cutoff).
				Update("status", models.RoomStatusArchived)
			if res.Error != nil {
				log.Printf("[RoomArchiveWorker] Error archiving rooms: %v", res.Error)
				continue
			}
			if res.RowsAffected > 0 {
				log.Printf("[RoomArchiveWorker] Archived %d idle rooms", res.RowsAffected)
			}
		}
	}()
}
