package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lifeos-hq/lifeos/pkg/logger"
)

// Sender delivers one rendered email and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to, subject, html string) (string, error)

func (f SenderFunc) Send(ctx context.Context, to, subject, html string) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx, to, subject, html)
}

// HTTPSender posts emails to a JSON email API.
type HTTPSender struct {
	client *http.Client
	url    string
	apiKey string
	from   string
	log    *logger.Logger
}

// NewHTTPSender creates a sender against the given email API endpoint.
func NewHTTPSender(client *http.Client, rawURL, apiKey, from string, log *logger.Logger) (*HTTPSender, error) {
	rawURL = strings.TrimSpace(rawURL)
	apiKey = strings.TrimSpace(apiKey)
	from = strings.TrimSpace(from)

	if rawURL == "" {
		return nil, fmt.Errorf("email api url is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("email api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("mail-sender")
	}
	return &HTTPSender{
		client: client,
		url:    rawURL,
		apiKey: apiKey,
		from:   from,
		log:    log,
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"from":    s.from,
		"to":      to,
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("email api returned status %d", resp.StatusCode)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode email api response: %w", err)
	}
	return payload.ID, nil
}
