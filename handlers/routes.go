package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/metrics"
	"github.com/karthikraju391/pairchat/middleware"
)

// NewApp builds the gateway with every route registered.
func NewApp(h *Handler, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "pairchat",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				logger.Error("request_failed", "path", c.Path(), "method", c.Method(), "error", err)
			}
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
	}))
	if logger.Log != nil && logger.Log.Enabled(context.Background(), slog.LevelInfo) {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api/v1", middleware.Protected(jwtSecret), middleware.RequireUser())
	api.Get("/conversations/:partnerID/messages", h.GetConversationMessages)
	api.Post("/profile/photo", h.UploadProfilePhoto)
	api.Get("/profile/:userID", h.GetProfile)

	app.Use("/chat", middleware.Protected(jwtSecret), middleware.RequireUser(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/chat/:partnerID", websocket.New(h.HandleWebSocket))

	return app
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.Store.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
