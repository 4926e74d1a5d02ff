// Package store persists chat sessions and messages. The remote database is
// the source of truth; when it is unreachable, reads fall back to the local
// cache and writes land there instead, so the UI is never blocked by a
// storage error.
package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/repository"
)

// Cache is the local fallback side of the store.
type Cache interface {
	ReplaceSessions(userID string, sessions []repository.Session) error
	PrependSession(userID string, session repository.Session) error
	LoadSessions(userID string) ([]repository.Session, error)
	ReplaceMessages(userID, sessionID string, messages []repository.Message) error
	AppendMessage(userID, sessionID string, message repository.Message) error
	LoadMessages(userID, sessionID string) ([]repository.Message, error)
}

// ConversationStore decorates the remote repositories with cache fallback.
type ConversationStore struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	cache    Cache
	log      *logrus.Logger
}

// New creates a ConversationStore.
func New(sessions repository.SessionRepository, messages repository.MessageRepository, cache Cache, log *logrus.Logger) *ConversationStore {
	return &ConversationStore{
		sessions: sessions,
		messages: messages,
		cache:    cache,
		log:      log,
	}
}

// ListSessions returns the user's sessions, newest first. A successful
// remote read overwrites the cache; a failed one degrades to the cache.
func (s *ConversationStore) ListSessions(ctx context.Context, userID string) []repository.Session {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("listing sessions from cache, remote unavailable")
		cached, cacheErr := s.cache.LoadSessions(userID)
		if cacheErr != nil {
			s.log.WithError(cacheErr).Error("session cache read failed")
			return []repository.Session{}
		}
		return cached
	}

	if err := s.cache.ReplaceSessions(userID, sessions); err != nil {
		s.log.WithError(err).Warn("session cache refresh failed")
	}
	return sessions
}

// CreateSession inserts a new session and returns its id. When the remote
// store rejects the insert, a locally-unique id is synthesized and the
// session lives only in the cache; the caller cannot tell the difference.
func (s *ConversationStore) CreateSession(ctx context.Context, userID, title, preview string) string {
	session := repository.Session{
		UserID:  userID,
		Title:   title,
		Preview: preview,
	}

	id, err := s.sessions.Create(ctx, &session)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("creating local fallback session, remote unavailable")
		session.ID = newLocalID()
		session.CreatedAt = time.Now()
		if cacheErr := s.cache.PrependSession(userID, session); cacheErr != nil {
			s.log.WithError(cacheErr).Error("session cache write failed")
		}
		return session.ID
	}

	if cacheErr := s.cache.PrependSession(userID, session); cacheErr != nil {
		s.log.WithError(cacheErr).Warn("session cache write failed")
	}
	return id
}

// SaveMessage persists one message. Empty assistant content is skipped so a
// failed generation never pollutes history. Remote failures fall back to the
// cache; either way the call reports success so the UI flow is not blocked.
func (s *ConversationStore) SaveMessage(ctx context.Context, sessionID, userID, content string, msgType repository.MessageType) bool {
	if msgType == repository.MessageTypeAI && strings.TrimSpace(content) == "" {
		s.log.Debug("empty assistant content not persisted")
		return true
	}

	message := repository.Message{
		SessionID: sessionID,
		UserID:    userID,
		Content:   content,
		Type:      msgType,
	}

	if _, err := s.messages.Create(ctx, message); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"user_id":    userID,
		}).Warn("saving message to cache, remote unavailable")

		message.ID = fmt.Sprintf("%d", time.Now().UnixMilli())
		message.CreatedAt = time.Now()
		if cacheErr := s.cache.AppendMessage(userID, sessionID, message); cacheErr != nil {
			s.log.WithError(cacheErr).Error("message cache write failed")
		}
	}
	return true
}

// GetChatMessages returns a session's messages in creation order, refreshing
// the cache on a successful remote read and serving the cache otherwise.
func (s *ConversationStore) GetChatMessages(ctx context.Context, sessionID, userID string) []repository.Message {
	messages, err := s.messages.ListBySession(ctx, userID, sessionID)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("listing messages from cache, remote unavailable")
		cached, cacheErr := s.cache.LoadMessages(userID, sessionID)
		if cacheErr != nil {
			s.log.WithError(cacheErr).Error("message cache read failed")
			return []repository.Message{}
		}
		return cached
	}

	if err := s.cache.ReplaceMessages(userID, sessionID, messages); err != nil {
		s.log.WithError(err).Warn("message cache refresh failed")
	}
	return messages
}

// DeleteSession removes a session remotely. There is no cache fallback for
// deletes; the error surfaces to the caller.
func (s *ConversationStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := s.sessions.Delete(ctx, userID, sessionID); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Error("session delete failed")
		return err
	}
	return nil
}

// ClearAllSessions removes every session the user owns. Remote only, like
// DeleteSession.
func (s *ConversationStore) ClearAllSessions(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteAllByUser(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("session clear failed")
		return err
	}
	return nil
}

// newLocalID synthesizes an offline session id: millisecond timestamp plus a
// short random suffix.
func newLocalID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
