package repository

import (
	"context"
	"time"
)

// MessageType distinguishes user queries from assistant answers.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeAI   MessageType = "ai"
)

// Session represents a chat session
type Session struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Title        string    `db:"title" json:"title"`
	Preview      string    `db:"preview" json:"preview"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	MessageCount int       `db:"message_count" json:"message_count"`
}

// Message represents a chat message
type Message struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"session_id"`
	UserID    string      `db:"user_id" json:"user_id"`
	Content   string      `db:"content" json:"content"`
	Type      MessageType `db:"message_type" json:"message_type"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// SessionRepository defines session storage operations
type SessionRepository interface {
	Create(ctx context.Context, session *Session) (string, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

// MessageRepository defines message storage operations
type MessageRepository interface {
	Create(ctx context.Context, message Message) (string, error)
	ListBySession(ctx context.Context, userID, sessionID string) ([]Message, error)
}
