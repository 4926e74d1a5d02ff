package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/config"
	"github.com/irfan-ai/irfan-backend/internal/guardrails"
)

// CompletionsClient talks to an OpenAI-compatible chat completions endpoint
// (the HF router speaks this dialect). Same contract as ResponsesClient.
type CompletionsClient struct {
	model          string
	timeout        time.Duration
	maxAnswerChars int
	simulate       bool
	chunkSize      int
	chunkDelay     time.Duration
	client         *openai.Client
	log            *logrus.Logger
}

// NewCompletionsClient creates a client from chat configuration.
func NewCompletionsClient(cfg config.ChatConfig, log *logrus.Logger) *CompletionsClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxAnswerChars
	if maxChars <= 0 {
		maxChars = DefaultMaxAnswerChars
	}

	return &CompletionsClient{
		model:          cfg.Model,
		timeout:        timeout,
		maxAnswerChars: maxChars,
		simulate:       cfg.SimulateStream,
		chunkSize:      cfg.StreamChunkSize,
		chunkDelay:     cfg.StreamChunkDelay,
		client:         openai.NewClientWithConfig(clientCfg),
		log:            log,
	}
}

func (c *CompletionsClient) buildRequest(req ChatRequest, stream bool) openai.ChatCompletionRequest {
	system := guardrails.SystemPolicyPrompt + "\n\n" + guardrails.LanguagePrompt(req.Language)

	return openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: guardrails.Sanitize(req.Query)},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// Chat performs a single whole-response call under the configured timeout.
func (c *CompletionsClient) Chat(ctx context.Context, req ChatRequest) ChatResult {
	if strings.TrimSpace(req.Query) == "" {
		req.applyDefaults()
		return failure(req, "Sorgu boş olamaz.")
	}
	req.applyDefaults()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return failure(req, answerFailed(err))
	}
	if len(resp.Choices) == 0 {
		return failure(req, answerFailed(errors.New("empty choices")))
	}

	return ChatResult{
		Success:   true,
		SessionID: req.SessionID,
		Content:   truncateAnswer(resp.Choices[0].Message.Content, c.maxAnswerChars),
		Citations: []string{},
		Language:  req.Language,
	}
}

// ChatStream delivers the answer incrementally, either from the upstream
// stream or via client-side re-chunking when simulation is configured.
func (c *CompletionsClient) ChatStream(ctx context.Context, req ChatRequest) (TokenStream, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("sorgu boş olamaz")
	}
	req.applyDefaults()

	if c.simulate {
		result := c.Chat(ctx, req)
		if !result.Success {
			return nil, fmt.Errorf("%s", result.Error)
		}
		return newChunkStream(result.Content, c.chunkSize, c.chunkDelay), nil
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)

	stream, err := c.client.CreateChatCompletionStream(streamCtx, c.buildRequest(req, true))
	if err != nil {
		cancel()
		return nil, err
	}

	return newCappedStream(&completionStream{stream: stream, cancel: cancel}, c.maxAnswerChars), nil
}

// completionStream adapts the go-openai stream to TokenStream.
type completionStream struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
	done   bool
}

func (s *completionStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}

		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *completionStream) Close() error {
	s.done = true
	s.cancel()
	s.stream.Close()
	return nil
}
