package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/guardrails"
	"github.com/irfan-ai/irfan-backend/internal/repository"
	"github.com/irfan-ai/irfan-backend/internal/transport"
)

var (
	// ErrEmptyQuery rejects a turn with no usable query text.
	ErrEmptyQuery = errors.New("sorgu boş olamaz")

	// ErrTurnInFlight rejects a second concurrent turn on one session.
	ErrTurnInFlight = errors.New("bu oturum için bir cevap zaten üretiliyor")
)

// answerFailedText replaces the assistant's reply when the transport fails.
// The user sees this in place of an answer rather than a blank bubble.
const answerFailedText = "Cevap alınamadı. Lütfen internet bağlantınızı ve backend yapılandırmanızı kontrol ediniz."

const injectionRefusalText = "Güvenlik: Prompt injection tespit edildi. Lütfen talebinizi daha doğal bir dille," +
	" kapsam dahilindeki kaynaklarla ilgili olacak şekilde tekrar ifade ediniz."

const domainRefusalText = "Bu asistan yalnızca Kur'ân, sahih hadis ve Mustafa İloğlu'nun Gizli İlimler Hazinesi kapsamındaki" +
	" havas ilimleri hakkında yardımcı olabilir. Lütfen soruyu bu kapsamda tekrar ifade ediniz."

const (
	titleMaxChars   = 50
	previewMaxChars = 120
)

// Store is what the chat service needs from the conversation store.
type Store interface {
	CreateSession(ctx context.Context, userID, title, preview string) string
	SaveMessage(ctx context.Context, sessionID, userID, content string, msgType repository.MessageType) bool
	GetChatMessages(ctx context.Context, sessionID, userID string) []repository.Message
	ListSessions(ctx context.Context, userID string) []repository.Session
	DeleteSession(ctx context.Context, userID, sessionID string) error
	ClearAllSessions(ctx context.Context, userID string) error
}

// TurnInput is one user query bound for the assistant.
type TurnInput struct {
	UserID    string
	SessionID string
	Query     string
	Language  string
}

// TurnResult is the completed turn.
type TurnResult struct {
	SessionID string   `json:"session_id"`
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
	Language  string   `json:"language"`
	Failed    bool     `json:"-"`
}

// ChatService orchestrates a conversation turn: ensure the session, persist
// the user message, stream the answer, persist the assistant message.
type ChatService struct {
	transport transport.Client
	store     Store
	log       *logrus.Logger

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewChatService creates a chat service.
func NewChatService(client transport.Client, store Store, log *logrus.Logger) *ChatService {
	return &ChatService{
		transport: client,
		store:     store,
		log:       log,
		busy:      make(map[string]struct{}),
	}
}

// RunTurn executes one chat turn. Tokens are forwarded to onToken (which may
// be nil) as they arrive. Only one turn may be in flight per session.
func (s *ChatService) RunTurn(ctx context.Context, in TurnInput, onToken func(string)) (TurnResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return TurnResult{}, ErrEmptyQuery
	}

	if in.UserID == "" {
		in.UserID = transport.AnonymousUserID
	}
	language := in.Language
	if language == "" || language == "auto" {
		language = transport.DefaultLanguage
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = s.store.CreateSession(ctx, in.UserID, truncateRunes(query, titleMaxChars), truncateRunes(query, previewMaxChars))
	}

	if !s.acquire(in.UserID, sessionID) {
		return TurnResult{}, ErrTurnInFlight
	}
	defer s.release(in.UserID, sessionID)

	result := TurnResult{
		SessionID: sessionID,
		Citations: []string{},
		Language:  language,
	}

	// Guardrails refuse before anything reaches the model.
	if refusal, refused := s.refusal(query); refused {
		s.store.SaveMessage(ctx, sessionID, in.UserID, query, repository.MessageTypeUser)
		s.store.SaveMessage(ctx, sessionID, in.UserID, refusal, repository.MessageTypeAI)
		result.Content = refusal
		return result, nil
	}

	s.store.SaveMessage(ctx, sessionID, in.UserID, query, repository.MessageTypeUser)

	content, failed := s.generate(ctx, in, sessionID, query, language, onToken)
	result.Content = content
	result.Failed = failed

	s.store.SaveMessage(ctx, sessionID, in.UserID, content, repository.MessageTypeAI)

	return result, nil
}

// generate streams the assistant's answer, accumulating tokens. A transport
// failure with nothing accumulated yields the visible error text; partial
// output already delivered is kept, not retracted.
func (s *ChatService) generate(ctx context.Context, in TurnInput, sessionID, query, language string, onToken func(string)) (string, bool) {
	stream, err := s.transport.ChatStream(ctx, transport.ChatRequest{
		Query:     query,
		SessionID: sessionID,
		UserID:    in.UserID,
		Language:  language,
	})
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Error("chat stream failed to start")
		return answerFailedText, true
	}
	defer stream.Close()

	var b strings.Builder
	for {
		token, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).WithField("session_id", sessionID).Error("chat stream interrupted")
				if b.Len() == 0 {
					return answerFailedText, true
				}
			}
			break
		}
		b.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	if b.Len() == 0 {
		return answerFailedText, true
	}
	return b.String(), false
}

func (s *ChatService) refusal(query string) (string, bool) {
	if guardrails.HasPromptInjection(query) {
		return injectionRefusalText, true
	}
	if !guardrails.InAllowedDomain(query) {
		return domainRefusalText, true
	}
	return "", false
}

func (s *ChatService) acquire(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + sessionID
	if _, inFlight := s.busy[key]; inFlight {
		return false
	}
	s.busy[key] = struct{}{}
	return true
}

func (s *ChatService) release(userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, userID+"/"+sessionID)
}

func truncateRunes(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
