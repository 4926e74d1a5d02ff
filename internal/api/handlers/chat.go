package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/api/middleware"
	"github.com/irfan-ai/irfan-backend/internal/services"
)

// ChatHandler serves the chat endpoint in both synchronous and SSE modes.
type ChatHandler struct {
	chat *services.ChatService
	log  *logrus.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chat *services.ChatService, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

type chatRequestBody struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Stream    bool   `json:"stream"`
	Language  string `json:"language"`
}

type streamFrame struct {
	Token     string   `json:"token"`
	Done      bool     `json:"done"`
	SessionID string   `json:"session_id,omitempty"`
	Citations []string `json:"citations,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Chat handles POST /api/irfan/chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var body chatRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "geçersiz istek gövdesi"})
	}

	userID := body.UserID
	if userID == "" {
		userID = middleware.CurrentUserID(c)
	}

	in := services.TurnInput{
		UserID:    userID,
		SessionID: body.SessionID,
		Query:     body.Query,
		Language:  body.Language,
	}

	if !body.Stream {
		return h.chatSync(c, in)
	}
	return h.chatStream(c, in)
}

func (h *ChatHandler) chatSync(c *fiber.Ctx, in services.TurnInput) error {
	result, err := h.chat.RunTurn(c.Context(), in, nil)
	if err != nil {
		return h.turnError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": result.SessionID,
		"content":    result.Content,
		"citations":  result.Citations,
		"language":   result.Language,
	})
}

func (h *ChatHandler) chatStream(c *fiber.Ctx, in services.TurnInput) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after this handler returns; the request context is
	// gone by then, so the turn runs under its own context.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		writeFrame := func(frame streamFrame) {
			data, err := json.Marshal(frame)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}

		result, err := h.chat.RunTurn(context.Background(), in, func(token string) {
			writeFrame(streamFrame{Token: token})
		})
		if err != nil {
			writeFrame(streamFrame{Error: err.Error(), Done: true})
			return
		}
		if result.Failed {
			// The error text still streams out as the visible answer.
			writeFrame(streamFrame{Token: result.Content})
		}

		writeFrame(streamFrame{
			Done:      true,
			SessionID: result.SessionID,
			Citations: result.Citations,
		})
	})

	return nil
}

func (h *ChatHandler) turnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrTurnInFlight):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	default:
		h.log.WithError(err).Error("chat turn failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
