package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/irfan-ai/irfan-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message and returns its id
func (r *MessageRepository) Create(ctx context.Context, message repository.Message) (string, error) {
	message.ID = uuid.New().String()
	message.CreatedAt = time.Now()

	query := `
		INSERT INTO messages (id, session_id, user_id, content, message_type, created_at)
		VALUES (:id, :session_id, :user_id, :content, :message_type, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return "", err
	}

	return message.ID, nil
}

// ListBySession retrieves a session's messages ordered by creation time.
func (r *MessageRepository) ListBySession(ctx context.Context, userID, sessionID string) ([]repository.Message, error) {
	messages := []repository.Message{}
	query := `
		SELECT id, session_id, user_id, content, message_type, created_at
		FROM messages
		WHERE session_id = $1 AND user_id = $2
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &messages, query, sessionID, userID); err != nil {
		return nil, err
	}

	return messages, nil
}
