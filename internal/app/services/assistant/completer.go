package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lifeos-hq/lifeos/internal/app/domain/assistant"
	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Completer produces a reply for a system prompt and a message history.
type Completer interface {
	Complete(ctx context.Context, system string, messages []assistant.ChatMessage) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system string, messages []assistant.ChatMessage) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, system string, messages []assistant.ChatMessage) (string, error) {
	if f == nil {
		return "", fmt.Errorf("completer function is nil")
	}
	return f(ctx, system, messages)
}

// HTTPCompleter posts chat-completion requests to an OpenAI-style gateway.
type HTTPCompleter struct {
	client *http.Client
	url    string
	apiKey string
	model  string
	log    *logger.Logger
}

// NewHTTPCompleter builds a completer for the given gateway URL and model.
// The API key may be empty for gateways without authentication.
func NewHTTPCompleter(client *http.Client, url, apiKey, model string, log *logger.Logger) (*HTTPCompleter, error) {
	if url == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("completer")
	}
	return &HTTPCompleter{client: client, url: url, apiKey: apiKey, model: model, log: log}, nil
}

// Complete implements Completer.
func (c *HTTPCompleter) Complete(ctx context.Context, system string, messages []assistant.ChatMessage) (string, error) {
	payload := struct {
		Model    string                  `json:"model"`
		Messages []assistant.ChatMessage `json:"messages"`
	}{
		Model:    c.model,
		Messages: make([]assistant.ChatMessage, 0, len(messages)+1),
	}
	if system != "" {
		payload.Messages = append(payload.Messages, assistant.ChatMessage{Role: assistant.RoleSystem, Content: system})
	}
	payload.Messages = append(payload.Messages, messages...)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded struct {
		Choices []struct {
			Message assistant.ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("gateway returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
