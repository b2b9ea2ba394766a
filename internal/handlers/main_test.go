package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fitlink-in/fitlink_backend/internal/models"
	"github.com/fitlink-in/fitlink_backend/internal/realtime"
	"github.com/fitlink-in/fitlink_backend/internal/services/booking"
)

// testUserHeader carries the acting user id so tests can skip the JWT
// cookie dance.
const testUserHeader = "X-Test-User"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.BusinessProfile{},
		&models.TrainerProfile{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.Booking{},
		&models.Notification{},
	))

	return gdb
}

type testEnv struct {
	App *fiber.App
	DB  *gorm.DB
	Hub *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := openTestDB(t)

	hub := realtime.NewHub()
	go hub.Run()

	// Unreachable Redis: publishes fail and get logged, nothing depends on
	// them in these tests.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	chatH := NewChatHandler(gdb, hub, rdb)
	bookingH := NewBookingHandler(gdb, hub, rdb, booking.NewService(gdb))
	profileH := NewProfileHandler(gdb)
	notifH := NewNotificationHandler(gdb)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get(testUserHeader); uid != "" {
			c.Locals("userId", uid)
		}
		return c.Next()
	})

	chat := app.Group("/api/chat")
	chat.Post("/rooms", chatH.CreateOrGetRoom)
	chat.Get("/rooms", chatH.GetRooms)
	chat.Get("/rooms/:id/messages", chatH.GetMessages)
	chat.Post("/rooms/:id/messages", chatH.SendMessage)
	chat.Post("/rooms/:id/quotes", chatH.SendPriceQuote)
	chat.Patch("/rooms/:id/read", chatH.MarkRead)
	chat.Get("/unread", chatH.GetUnreadTotal)
	chat.Post("/rooms/:id/bookings", bookingH.ConvertQuote)
	chat.Get("/rooms/:id/bookings", bookingH.GetRoomBookings)
	app.Get("/api/bookings/:id", bookingH.GetBooking)
	app.Post("/api/business/profile", profileH.CreateBusinessProfile)
	app.Post("/api/trainer/profile", profileH.CreateTrainerProfile)
	app.Get("/api/notifications", notifH.GetNotifications)
	app.Patch("/api/notifications/read", notifH.MarkAllRead)

	return &testEnv{App: app, DB: gdb, Hub: hub}
}

func (e *testEnv) request(t *testing.T, method, path string, asUser uuid.UUID, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asUser != uuid.Nil {
		req.Header.Set(testUserHeader, asUser.String())
	}

	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (e *testEnv) createUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.User{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "x",
		Role:     models.RoleCustomer,
		IsActive: true,
	}
	require.NoError(t, e.DB.Create(&u).Error)
	return &u
}

func (e *testEnv) createBusiness(t *testing.T, owner *models.User, name string) *models.BusinessProfile {
	t.Helper()
	p := models.BusinessProfile{
		UserID:   owner.ID,
		Name:     name,
		Category: models.CategoryGym,
	}
	require.NoError(t, e.DB.Create(&p).Error)
	return &p
}

func (e *testEnv) createTrainer(t *testing.T, owner *models.User, name string) *models.TrainerProfile {
	t.Helper()
	p := models.TrainerProfile{
		UserID:      owner.ID,
		DisplayName: name,
		Specialty:   "personal training",
	}
	require.NoError(t, e.DB.Create(&p).Error)
	return &p
}

func (e *testEnv) createRoom(t *testing.T, customer *models.User, biz *models.BusinessProfile, trainer *models.TrainerProfile) *models.ChatRoom {
	t.Helper()
	room := models.ChatRoom{
		CustomerID: customer.ID,
		Status:     models.RoomStatusActive,
	}
	if biz != nil {
		room.RoomType = models.RoomTypeBusiness
		room.BusinessID = &biz.ID
	} else {
		room.RoomType = models.RoomTypeTrainer
		room.TrainerID = &trainer.ID
	}
	require.NoError(t, e.DB.Create(&room).Error)
	return &room
}
