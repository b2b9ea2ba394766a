package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

// ProfileHandler manages the provider identities (business and trainer
// profiles) that the room directory resolves ownership against.
type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

type CreateBusinessReq struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	PhotoURL string `json:"photo_url"`
	City     string `json:"city"`
	About    string `json:"about"`
}

var validCategories = map[models.BusinessCategory]bool{
	models.CategoryGym:           true,
	models.CategorySpa:           true,
	models.CategoryYoga:          true,
	models.CategoryFitnessStudio: true,
}

// CreateBusinessProfile creates the caller's business profile and promotes
// their role. One profile per user.
func (h *ProfileHandler) CreateBusinessProfile(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateBusinessReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Name is required"})
	}

	category := models.BusinessCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if !validCategories[category] {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid category"})
	}

	var existing models.BusinessProfile
	if err := h.DB.Where("user_id = ?", userUUID).First(&existing).Error; err == nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Business profile already exists"})
	} else if err != gorm.ErrRecordNotFound {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Server error"})
	}

	profile := models.BusinessProfile{
		UserID:   userUUID,
		Name:     name,
		Category: category,
		PhotoURL: req.PhotoURL,
		City:     strings.TrimSpace(req.City),
		About:    req.About,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userUUID).
			Update("role", models.RoleBusiness).Error
	})
	if err != nil {
		log.Println("Error creating business profile:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create business profile"})
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "data": profile})
}

func (h *ProfileHandler) GetMyBusinessProfile(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var profile models.BusinessProfile
	if err := h.DB.Where("user_id = ?", userUUID).First(&profile).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Profile not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": profile})
}

type CreateTrainerReq struct {
	DisplayName string `json:"display_name"`
	Specialty   string `json:"specialty"`
	PhotoURL    string `json:"photo_url"`
	City        string `json:"city"`
	About       string `json:"about"`
}

// CreateTrainerProfile creates the caller's trainer profile and promotes
// their role. One profile per user.
func (h *ProfileHandler) CreateTrainerProfile(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateTrainerReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request body"})
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Display name is required"})
	}

	var existing models.TrainerProfile
	if err := h.DB.Where("user_id = ?", userUUID).First(&existing).Error; err == nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Trainer profile already exists"})
	} else if err != gorm.ErrRecordNotFound {
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Server error"})
	}

	profile := models.TrainerProfile{
		UserID:      userUUID,
		DisplayName: displayName,
		Specialty:   strings.TrimSpace(req.Specialty),
		PhotoURL:    req.PhotoURL,
		City:        strings.TrimSpace(req.City),
		About:       req.About,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userUUID).
			Update("role", models.RoleTrainer).Error
	})
	if err != nil {
		log.Println("Error creating trainer profile:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create trainer profile"})
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "data": profile})
}

func (h *ProfileHandler) GetMyTrainerProfile(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var profile models.TrainerProfile
	if err := h.DB.Where("user_id = ?", userUUID).First(&profile).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Profile not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": profile})
}
