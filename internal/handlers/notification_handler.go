package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// GetNotifications lists the caller's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var notifs []models.Notification
	if err := h.DB.
		Where("user_id = ?", userUUID).
		Order("created_at DESC").
		Limit(100).
		Find(&notifs).Error; err != nil {
		log.Println("Error fetching notifications:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to fetch notifications"})
	}

	return c.JSON(fiber.Map{"success": true, "data": notifs})
}

// MarkAllRead flips is_read on every unread notification of the caller.
// Idempotent.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	if err := h.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = false", userUUID).
		Update("is_read", true).Error; err != nil {
		log.Println("Error marking notifications as read:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to mark notifications as read"})
	}

	return c.JSON(fiber.Map{"success": true})
}
