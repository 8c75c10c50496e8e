package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"subscription-commerce/internal/config"
	"subscription-commerce/internal/domain/ports/adapter"
	"subscription-commerce/internal/infra/logging"
)

var _ adapter.Mailer = (*HTTPMailer)(nil)

// HTTPMailer posts email jobs to the notification collaborator. When no base
// URL is configured it degrades to logging, which keeps local development and
// tests working without the collaborator.
type HTTPMailer struct {
	baseURL string
	apiKey  string
	dev     bool // dev runs log addresses unredacted
	client  *http.Client
	log     *zerolog.Logger
}

func NewHTTPMailer(cfg *config.NotifyConfig, dev bool, logger *zerolog.Logger) *HTTPMailer {
	return &HTTPMailer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		dev:     dev,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     logger,
	}
}

func (m *HTTPMailer) SendActivationEmail(ctx context.Context, email, name, token, product, returnURL string) error {
	if m.baseURL == "" {
		m.log.Info().Str("email", logging.Redact(email, m.dev)).Str("product", product).
			Msg("mailer disabled, skipping activation email")
		return nil
	}
	return m.post(ctx, "/v1/emails/activation", map[string]string{
		"email":      email,
		"name":       name,
		"token":      token,
		"product":    product,
		"return_url": returnURL,
	})
}

func (m *HTTPMailer) SendWelcomeEmail(ctx context.Context, email, name, product, returnURL string) error {
	if m.baseURL == "" {
		m.log.Info().Str("email", logging.Redact(email, m.dev)).Str("product", product).
			Msg("mailer disabled, skipping welcome email")
		return nil
	}
	return m.post(ctx, "/v1/emails/welcome", map[string]string{
		"email":      email,
		"name":       name,
		"product":    product,
		"return_url": returnURL,
	})
}

func (m *HTTPMailer) post(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification collaborator returned %d", resp.StatusCode)
	}
	return nil
}
