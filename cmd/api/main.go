package main

import (
	"context"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/fitlink-in/fitlink_backend/internal/config"
	"github.com/fitlink-in/fitlink_backend/internal/db"
	"github.com/fitlink-in/fitlink_backend/internal/handlers"
	"github.com/fitlink-in/fitlink_backend/internal/middleware"
	"github.com/fitlink-in/fitlink_backend/internal/models"
	"github.com/fitlink-in/fitlink_backend/internal/realtime"
	"github.com/fitlink-in/fitlink_backend/internal/services/booking"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()
	go hub.RunNotificationRelay(context.Background(), rdb)

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.BusinessProfile{},
		&models.TrainerProfile{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.Booking{},
		&models.Notification{},
	); err != nil {
		log.Fatal(err)
	}

	bookingSvc := booking.NewService(gdb)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	profileH := handlers.NewProfileHandler(gdb)
	chatH := handlers.NewChatHandler(gdb, hub, rdb)
	bookingH := handlers.NewBookingHandler(gdb, hub, rdb, bookingSvc)
	notifH := handlers.NewNotificationHandler(gdb)

	chatH.StartRoomArchiveWorker()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	// protected (JWT cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid := c.Locals("userId")

		var user models.User
		if err := gdb.First(&user, "id = ?", uid).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	})

	// provider profiles
	protected.Post("/business/profile", profileH.CreateBusinessProfile)
	protected.Get("/business/profile/me", profileH.GetMyBusinessProfile)
	protected.Post("/trainer/profile", profileH.CreateTrainerProfile)
	protected.Get("/trainer/profile/me", profileH.GetMyTrainerProfile)

	// chat + booking conversion
	chat := protected.Group("/chat")
	chat.Post("/rooms", chatH.CreateOrGetRoom)
	chat.Get("/rooms", chatH.GetRooms)
	chat.Get("/rooms/:id/messages", chatH.GetMessages)
	chat.Post("/rooms/:id/messages", chatH.SendMessage)
	chat.Post("/rooms/:id/quotes", chatH.SendPriceQuote)
	chat.Patch("/rooms/:id/read", chatH.MarkRead)
	chat.Get("/unread", chatH.GetUnreadTotal)

	chat.Post("/rooms/:id/bookings", bookingH.ConvertQuote)
	chat.Get("/rooms/:id/bookings", bookingH.GetRoomBookings)
	protected.Get("/bookings/:id", bookingH.GetBooking)

	// notifications
	protected.Get("/notifications", notifH.GetNotifications)
	protected.Patch("/notifications/read", notifH.MarkAllRead)

	// WebSocket endpoint (authenticated via query param)
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = cfg.AppPort
	}
	log.Fatal(app.Listen(":" + port))
}
