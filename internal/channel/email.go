package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// EmailConfig configures the transactional email adapter.
type EmailConfig struct {
	APIKey   string
	From     string // sender address
	FromName string
	BaseURL  string // override for tests; empty means the Brevo API
}

// EmailSender sends transactional email via the Brevo API.
type EmailSender struct {
	cfg        EmailConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewEmailSender creates an email adapter. A missing API key is not an error
// here; Send reports it per call so the job can still use SMS.
func NewEmailSender(cfg EmailConfig, logger *slog.Logger) *EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
	Text    string         `json:"textContent,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// Send posts one email. Never returns a Go error; inspect Result.OK.
func (s *EmailSender) Send(ctx context.Context, to, subject, html, text string) Result {
	if s.cfg.APIKey == "" {
		return failure("email not configured (missing API key)")
	}
	if to == "" {
		return failure("empty recipient address")
	}

	payload, err := json.Marshal(brevoSendRequest{
		Sender:  brevoContact{Email: s.cfg.From, Name: s.cfg.FromName},
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		return failure(fmt.Sprintf("marshal request: %v", err))
	}

	endpoint := s.cfg.BaseURL
	if endpoint == "" {
		endpoint = brevoEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failure(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("Email send failed", "to", to, "error", err)
		return failure(fmt.Sprintf("email request: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("Email provider returned non-2xx status",
			"to", to, "status_code", resp.StatusCode)
		return failure(fmt.Sprintf("email provider HTTP %d", resp.StatusCode))
	}

	var parsed brevoSendResponse
	_ = json.Unmarshal(body, &parsed)

	s.logger.Info("Email sent", "to", to, "subject", subject, "message_id", parsed.MessageID)
	return Result{OK: true, ID: parsed.MessageID}
}
