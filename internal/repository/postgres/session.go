package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/irfan-ai/irfan-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session and returns its id
func (r *SessionRepository) Create(ctx context.Context, session *repository.Session) (string, error) {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO chat_sessions (id, user_id, title, preview, created_at)
		VALUES (:id, :user_id, :title, :preview, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return "", err
	}

	return session.ID, nil
}

// ListByUser retrieves a user's sessions, newest first, with a derived
// message count.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]repository.Session, error) {
	sessions := []repository.Session{}
	query := `
		SELECT s.id, s.user_id, s.title, COALESCE(s.preview, '') AS preview,
		       s.created_at, COUNT(m.id) AS message_count
		FROM chat_sessions s
		LEFT JOIN messages m ON m.session_id = s.id
		WHERE s.user_id = $1
		GROUP BY s.id, s.user_id, s.title, s.preview, s.created_at
		ORDER BY s.created_at DESC
	`

	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session; its messages go with it via the FK cascade.
func (r *SessionRepository) Delete(ctx context.Context, userID, id string) error {
	query := "DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2"
	_, err := r.db.ExecContext(ctx, query, id, userID)
	return err
}

// DeleteAllByUser removes every session owned by the user.
func (r *SessionRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	query := "DELETE FROM chat_sessions WHERE user_id = $1"
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
