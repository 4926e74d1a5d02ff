package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/api/middleware"
	"github.com/irfan-ai/irfan-backend/internal/services"
)

// SessionHandler serves session listing, creation and deletion.
type SessionHandler struct {
	store services.Store
	log   *logrus.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store services.Store, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{store: store, log: log}
}

type createSessionBody struct {
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	return c.JSON(h.store.ListSessions(c.Context(), userID))
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var body createSessionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "geçersiz istek gövdesi"})
	}
	if body.Title == "" {
		body.Title = "Yeni Sohbet"
	}

	userID := middleware.CurrentUserID(c)
	id := h.store.CreateSession(c.Context(), userID, body.Title, body.Preview)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// Messages handles GET /api/sessions/:id/messages.
func (h *SessionHandler) Messages(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	sessionID := c.Params("id")

	return c.JSON(h.store.GetChatMessages(c.Context(), sessionID, userID))
}

// Delete handles DELETE /api/sessions/:id. There is no offline fallback for
// deletes, so failures surface to the caller.
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	sessionID := c.Params("id")

	if err := h.store.DeleteSession(c.Context(), userID, sessionID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sohbet silinemedi."})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Clear handles DELETE /api/sessions.
func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	if err := h.store.ClearAllSessions(c.Context(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sohbet geçmişi temizlenemedi."})
	}
	return c.JSON(fiber.Map{"ok": true})
}
