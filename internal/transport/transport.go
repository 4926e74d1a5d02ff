// Package transport turns a user query into a complete answer or a stream
// of incremental text tokens from the upstream model endpoint.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Defaults applied to zero-valued request fields.
const (
	DefaultLanguage    = "tr"
	DefaultTemperature = float32(0.2)
	DefaultTopP        = float32(0.95)
	DefaultMaxTokens   = 4096

	// DefaultTimeout bounds both the synchronous call and the stream.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxAnswerChars caps answer length; the cut point is not
	// guaranteed to land on a sentence boundary.
	DefaultMaxAnswerChars = 800

	// AnonymousUserID is the sentinel for unauthenticated callers.
	AnonymousUserID = "anonymous"
)

// ErrStreamClosed is returned by Recv after the stream has been closed.
var ErrStreamClosed = errors.New("stream closed")

// ChatRequest is one chat turn bound for the model endpoint.
type ChatRequest struct {
	Query       string  `json:"query"`
	SessionID   string  `json:"session_id,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
	Language    string  `json:"language,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

func (r *ChatRequest) applyDefaults() {
	if r.SessionID == "" {
		r.SessionID = uuid.New().String()
	}
	if r.UserID == "" {
		r.UserID = AnonymousUserID
	}
	if r.Language == "" || r.Language == "auto" {
		r.Language = DefaultLanguage
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.TopP == 0 {
		r.TopP = DefaultTopP
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
}

// ChatResult is the tagged outcome of a synchronous chat call. Failures are
// carried in the result, never as a panic across the public boundary.
type ChatResult struct {
	Success   bool     `json:"success"`
	SessionID string   `json:"session_id,omitempty"`
	Content   string   `json:"content,omitempty"`
	Citations []string `json:"citations"`
	Language  string   `json:"language,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// TokenStream is a finite, non-restartable sequence of text fragments.
// Recv returns io.EOF when the stream is exhausted. Close releases the
// underlying connection and is safe to call at any point, including before
// the stream is drained.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Client issues chat requests to the model endpoint.
type Client interface {
	// Chat performs a single-attempt, whole-response call. Retries are the
	// caller's decision.
	Chat(ctx context.Context, req ChatRequest) ChatResult

	// ChatStream delivers the answer incrementally. A non-2xx status or
	// absent response body fails the call; tokens already yielded are not
	// retracted on a mid-stream error.
	ChatStream(ctx context.Context, req ChatRequest) (TokenStream, error)
}

func failure(req ChatRequest, msg string) ChatResult {
	return ChatResult{
		Success:   false,
		SessionID: req.SessionID,
		Citations: []string{},
		Language:  req.Language,
		Error:     msg,
	}
}

// truncateAnswer cuts content to at most max runes.
func truncateAnswer(content string, max int) string {
	if max <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
