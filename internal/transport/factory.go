package transport

import (
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/config"
)

// NewClient builds the transport selected by configuration.
func NewClient(cfg config.ChatConfig, log *logrus.Logger) Client {
	switch cfg.Provider {
	case "openai-compatible":
		return NewCompletionsClient(cfg, log)
	default:
		return NewResponsesClient(cfg, log)
	}
}
