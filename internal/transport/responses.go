package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfan-ai/irfan-backend/internal/config"
	"github.com/irfan-ai/irfan-backend/internal/guardrails"
)

// ResponsesClient talks to a Responses-style model endpoint over raw HTTP.
// It is the primary transport: it owns the request shape, the defensive
// response-shape parsing and the SSE token stream decode.
type ResponsesClient struct {
	baseURL        string
	apiKey         string
	model          string
	timeout        time.Duration
	maxAnswerChars int
	simulate       bool
	chunkSize      int
	chunkDelay     time.Duration
	client         *http.Client
	log            *logrus.Logger
}

// NewResponsesClient creates a client from chat configuration.
func NewResponsesClient(cfg config.ChatConfig, log *logrus.Logger) *ResponsesClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := cfg.MaxAnswerChars
	if maxChars <= 0 {
		maxChars = DefaultMaxAnswerChars
	}

	return &ResponsesClient{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		timeout:        timeout,
		maxAnswerChars: maxChars,
		simulate:       cfg.SimulateStream,
		chunkSize:      cfg.StreamChunkSize,
		chunkDelay:     cfg.StreamChunkDelay,
		client:         &http.Client{},
		log:            log,
	}
}

type responsesRequest struct {
	Model       string           `json:"model"`
	Input       []inputMessage   `json:"input"`
	Text        textOptions      `json:"text"`
	Reasoning   reasoningOptions `json:"reasoning"`
	Tools       []any            `json:"tools"`
	Store       bool             `json:"store"`
	Stream      bool             `json:"stream,omitempty"`
	Temperature float32          `json:"temperature,omitempty"`
	TopP        float32          `json:"top_p,omitempty"`
	MaxTokens   int              `json:"max_output_tokens,omitempty"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textOptions struct {
	Format    formatOptions `json:"format"`
	Verbosity string        `json:"verbosity"`
}

type formatOptions struct {
	Type string `json:"type"`
}

type reasoningOptions struct {
	Effort string `json:"effort"`
}

// responsesPayload covers the upstream response shapes we accept. The format
// is not contractually fixed, so parsing tries each shape in priority order.
type responsesPayload struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractContent resolves the answer text through priority-ordered shape
// detectors; the first non-empty match wins.
func extractContent(raw []byte) (string, error) {
	var payload responsesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	detectors := []func(responsesPayload) (string, bool){
		fromOutputText,
		fromOutputBlocks,
		fromChoices,
	}
	for _, detect := range detectors {
		if content, ok := detect(payload); ok {
			return content, nil
		}
	}

	return "", fmt.Errorf("no recognizable content in response")
}

func fromOutputText(p responsesPayload) (string, bool) {
	if p.OutputText != "" {
		return p.OutputText, true
	}
	return "", false
}

func fromOutputBlocks(p responsesPayload) (string, bool) {
	var b strings.Builder
	for _, block := range p.Output {
		for _, content := range block.Content {
			b.WriteString(content.Text)
		}
	}
	if b.Len() > 0 {
		return b.String(), true
	}
	return "", false
}

func fromChoices(p responsesPayload) (string, bool) {
	if len(p.Choices) > 0 && p.Choices[0].Message.Content != "" {
		return p.Choices[0].Message.Content, true
	}
	return "", false
}

func (c *ResponsesClient) buildRequest(req ChatRequest, stream bool) responsesRequest {
	system := guardrails.SystemPolicyPrompt + "\n\n" + guardrails.LanguagePrompt(req.Language)

	return responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: guardrails.Sanitize(req.Query)},
		},
		Text:        textOptions{Format: formatOptions{Type: "text"}, Verbosity: "low"},
		Reasoning:   reasoningOptions{Effort: "medium"},
		Tools:       []any{},
		Store:       true,
		Stream:      stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
}

func (c *ResponsesClient) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return httpReq, nil
}

// Chat performs a single whole-response call under the configured timeout.
func (c *ResponsesClient) Chat(ctx context.Context, req ChatRequest) ChatResult {
	if strings.TrimSpace(req.Query) == "" {
		req.applyDefaults()
		return failure(req, "Sorgu boş olamaz.")
	}
	req.applyDefaults()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.buildRequest(req, false))
	if err != nil {
		return failure(req, answerFailed(err))
	}

	httpReq, err := c.newHTTPRequest(ctx, body)
	if err != nil {
		return failure(req, answerFailed(err))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return failure(req, answerFailed(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return failure(req, answerFailed(fmt.Errorf("API error (%s): %s", resp.Status, string(respBody))))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(req, answerFailed(err))
	}

	content, err := extractContent(raw)
	if err != nil {
		return failure(req, answerFailed(err))
	}

	return ChatResult{
		Success:   true,
		SessionID: req.SessionID,
		Content:   truncateAnswer(content, c.maxAnswerChars),
		Citations: []string{},
		Language:  req.Language,
	}
}

// ChatStream delivers the answer as a token stream. The stream carries the
// same deadline as Chat; closing it releases the connection.
func (c *ResponsesClient) ChatStream(ctx context.Context, req ChatRequest) (TokenStream, error) {
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

	body, err := json.Marshal(c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)

	httpReq, err := c.newHTTPRequest(streamCtx, body)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("API error (%s): %s", resp.Status, string(respBody))
	}
	if resp.Body == nil {
		cancel()
		return nil, fmt.Errorf("no response body")
	}

	return newCappedStream(newSSEStream(resp.Body, cancel, c.log), c.maxAnswerChars), nil
}

func answerFailed(err error) string {
	return fmt.Sprintf("Model cevabı alınamadı. Lütfen HF_TOKEN ayarınızı ve ağ bağlantınızı kontrol ediniz. Hata: %v", err)
}
