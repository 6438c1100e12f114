package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSMSInterval is the minimum spacing between gateway sends. The
// upstream gateway throttles aggressively; one message per second keeps well
// inside its limit.
const DefaultSMSInterval = time.Second

// SMSConfig configures the SMS gateway adapter.
type SMSConfig struct {
	GatewayURL   string // full endpoint, credentials and message go in the query
	Username     string
	Password     string
	SendInterval time.Duration // zero means DefaultSMSInterval
}

// SMSSender sends single SMS messages through an HTTP GET gateway. The
// gateway signals success with a plaintext body starting with "OK",
// optionally followed by a message id.
type SMSSender struct {
	cfg        SMSConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSMSSender creates an SMS adapter. Missing credentials are reported per
// call by Send, not here.
func NewSMSSender(cfg SMSConfig, logger *slog.Logger) *SMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.SendInterval
	if interval <= 0 {
		interval = DefaultSMSInterval
	}
	return &SMSSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}
}

// Send normalizes the phone number and posts one SMS. Never returns a Go
// error; inspect Result.OK. Sends are paced so consecutive calls respect the
// gateway's rate limit.
func (s *SMSSender) Send(ctx context.Context, phone, message string) Result {
	if s.cfg.GatewayURL == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return failure("sms not configured (missing gateway credentials)")
	}

	to, err := NormalizeBGPhone(phone)
	if err != nil {
		return failure(fmt.Sprintf("invalid phone: %v", err))
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return failure(fmt.Sprintf("sms rate limit wait: %v", err))
	}

	params := url.Values{}
	params.Set("user", s.cfg.Username)
	params.Set("pass", s.cfg.Password)
	params.Set("to", to)
	params.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.GatewayURL+"?"+params.Encode(), nil)
	if err != nil {
		return failure(fmt.Sprintf("create request: %v", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("SMS send failed", "to", to, "error", err)
		return failure(fmt.Sprintf("sms request: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return failure(fmt.Sprintf("read sms response: %v", err))
	}

	reply := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(reply, "OK") {
		s.logger.Warn("SMS gateway rejected message",
			"to", to, "status_code", resp.StatusCode, "body", truncate(reply, 120))
		return failure(fmt.Sprintf("sms gateway: %s", truncate(reply, 120)))
	}

	id := strings.TrimSpace(strings.TrimPrefix(reply, "OK"))
	s.logger.Info("SMS sent", "to", to, "message_id", id)
	return Result{OK: true, ID: id}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
