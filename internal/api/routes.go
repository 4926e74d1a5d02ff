package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/api/handlers"
	"github.com/irfan-ai/irfan-backend/internal/api/middleware"
	"github.com/irfan-ai/irfan-backend/internal/services"
)

// SetupRoutes wires the API surface.
func SetupRoutes(app *fiber.App, chat *services.ChatService, store services.Store, jwtSecret string, log *logrus.Logger) {
	chatHandler := handlers.NewChatHandler(chat, log)
	sessionHandler := handlers.NewSessionHandler(store, log)

	api := app.Group("/api", middleware.UserID(jwtSecret))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api.Post("/irfan/chat", chatHandler.Chat)

	sessions := api.Group("/sessions")
	sessions.Get("/", sessionHandler.List)
	sessions.Post("/", sessionHandler.Create)
	sessions.Get("/:id/messages", sessionHandler.Messages)
	sessions.Delete("/:id", sessionHandler.Delete)
	sessions.Delete("/", sessionHandler.Clear)
}
