// Package localcache is the on-device fallback store. It mirrors the most
// recent remote reads into a local SQLite file and serves them back when the
// remote store is unreachable. It is a weak, non-authoritative mirror: every
// successful remote read overwrites it, never merges.
package localcache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/irfan-ai/irfan-backend/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS cached_sessions (
	user_id       TEXT NOT NULL,
	position      INTEGER NOT NULL,
	id            TEXT NOT NULL,
	title         TEXT NOT NULL,
	preview       TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	PRIMARY KEY (user_id, position)
);
CREATE TABLE IF NOT EXISTS cached_messages (
	user_id      TEXT NOT NULL,
	session_id   TEXT NOT NULL,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (user_id, session_id, position)
);
`

// Cache is a file-backed session/message cache keyed per user.
// Mutations are serialized; the UI issues them sequentially anyway, but a
// multi-goroutine caller gets the same read-modify-write discipline.
type Cache struct {
	mu  sync.Mutex
	db  *sql.DB
	log *logrus.Logger
}

// Open opens (or creates) the cache database at path.
func Open(path string, log *logrus.Logger) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{db: db, log: log}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// ReplaceSessions overwrites the cached session list for a user.
func (c *Cache) ReplaceSessions(userID string, sessions []repository.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeSessions(userID, sessions)
}

// PrependSession puts a session at the head of the user's cached list.
func (c *Cache) PrependSession(userID string, session repository.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.readSessions(userID)
	if err != nil {
		return err
	}
	return c.writeSessions(userID, append([]repository.Session{session}, existing...))
}

// LoadSessions returns the cached session list for a user, possibly empty.
func (c *Cache) LoadSessions(userID string) ([]repository.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readSessions(userID)
}

// ReplaceMessages overwrites the cached messages for one session.
func (c *Cache) ReplaceMessages(userID, sessionID string, messages []repository.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeMessages(userID, sessionID, messages)
}

// AppendMessage adds a message to the end of a session's cached list.
func (c *Cache) AppendMessage(userID, sessionID string, message repository.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.readMessages(userID, sessionID)
	if err != nil {
		return err
	}
	return c.writeMessages(userID, sessionID, append(existing, message))
}

// LoadMessages returns the cached messages for a session, possibly empty.
func (c *Cache) LoadMessages(userID, sessionID string) ([]repository.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readMessages(userID, sessionID)
}

func (c *Cache) writeSessions(userID string, sessions []repository.Session) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cached_sessions WHERE user_id = ?", userID); err != nil {
		return err
	}
	for i, s := range sessions {
		_, err := tx.Exec(
			`INSERT INTO cached_sessions (user_id, position, id, title, preview, created_at, message_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, i, s.ID, s.Title, s.Preview, s.CreatedAt.Format(time.RFC3339Nano), s.MessageCount,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (c *Cache) readSessions(userID string) ([]repository.Session, error) {
	rows, err := c.db.Query(
		`SELECT id, title, preview, created_at, message_count
		 FROM cached_sessions WHERE user_id = ? ORDER BY position ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []repository.Session{}
	for rows.Next() {
		var s repository.Session
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Title, &s.Preview, &createdAt, &s.MessageCount); err != nil {
			return nil, err
		}
		s.UserID = userID
		s.CreatedAt = c.parseCreatedAt(createdAt, "cached_sessions")
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// parseCreatedAt tolerates corrupted timestamp rows: the row is still served,
// with a zero CreatedAt, and the corruption is logged.
func (c *Cache) parseCreatedAt(raw, table string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.log.WithError(err).WithField("table", table).Warn("invalid cached timestamp")
		return time.Time{}
	}
	return parsed
}

func (c *Cache) writeMessages(userID, sessionID string, messages []repository.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM cached_messages WHERE user_id = ? AND session_id = ?",
		userID, sessionID,
	); err != nil {
		return err
	}
	for i, m := range messages {
		_, err := tx.Exec(
			`INSERT INTO cached_messages (user_id, session_id, position, id, content, message_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, sessionID, i, m.ID, m.Content, string(m.Type), m.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (c *Cache) readMessages(userID, sessionID string) ([]repository.Message, error) {
	rows, err := c.db.Query(
		`SELECT id, content, message_type, created_at
		 FROM cached_messages WHERE user_id = ? AND session_id = ? ORDER BY position ASC`,
		userID, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []repository.Message{}
	for rows.Next() {
		var m repository.Message
		var msgType, createdAt string
		if err := rows.Scan(&m.ID, &m.Content, &msgType, &createdAt); err != nil {
			return nil, err
		}
		m.UserID = userID
		m.SessionID = sessionID
		m.Type = repository.MessageType(msgType)
		m.CreatedAt = c.parseCreatedAt(createdAt, "cached_messages")
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
