package channel

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailSender_Success(t *testing.T) {
	s := NewEmailSender(EmailConfig{
		APIKey:  "key",
		From:    "alerts@firealert.bg",
		BaseURL: "https://mail.test/smtp/email",
	}, nil)
	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://mail.test/smtp/email",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "key", req.Header.Get("api-key"))
			return httpmock.NewJsonResponse(http.StatusCreated,
				map[string]string{"messageId": "<msg-1@test>"})
		})

	res := s.Send(context.Background(), "user@example.com", "Fire nearby", "<p>hi</p>", "hi")
	assert.True(t, res.OK)
	assert.Equal(t, "<msg-1@test>", res.ID)
	assert.Empty(t, res.Error)
}

func TestEmailSender_ProviderError(t *testing.T) {
	s := NewEmailSender(EmailConfig{
		APIKey:  "key",
		From:    "alerts@firealert.bg",
		BaseURL: "https://mail.test/smtp/email",
	}, nil)
	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "https://mail.test/smtp/email",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"code":"unauthorized"}`))

	res := s.Send(context.Background(), "user@example.com", "s", "h", "t")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "HTTP 401")
}

func TestEmailSender_MissingCredentials(t *testing.T) {
	s := NewEmailSender(EmailConfig{}, nil)
	res := s.Send(context.Background(), "user@example.com", "s", "h", "t")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "not configured")
}

func TestEmailSender_EmptyRecipient(t *testing.T) {
	s := NewEmailSender(EmailConfig{APIKey: "key"}, nil)
	res := s.Send(context.Background(), "", "s", "h", "t")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "recipient")
}

func smsTestSender(t *testing.T) *SMSSender {
	t.Helper()
	s := NewSMSSender(SMSConfig{
		GatewayURL:   "https://sms.test/send",
		Username:     "acct",
		Password:     "secret",
		SendInterval: time.Millisecond,
	}, nil)
	httpmock.ActivateNonDefault(s.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestSMSSender_Success(t *testing.T) {
	s := smsTestSender(t)

	httpmock.RegisterResponder(http.MethodGet, "https://sms.test/send",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "acct", q.Get("user"))
			assert.Equal(t, "359888123456", q.Get("to"))
			assert.NotEmpty(t, q.Get("text"))
			return httpmock.NewStringResponse(http.StatusOK, "OK 42517"), nil
		})

	res := s.Send(context.Background(), "0888123456", "Fire reported 3 km away")
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "42517", res.ID)
}

func TestSMSSender_GatewayRejection(t *testing.T) {
	s := smsTestSender(t)

	httpmock.RegisterResponder(http.MethodGet, "https://sms.test/send",
		httpmock.NewStringResponder(http.StatusOK, "ERR 21 invalid recipient"))

	res := s.Send(context.Background(), "0888123456", "msg")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "ERR 21")
}

func TestSMSSender_InvalidPhone(t *testing.T) {
	s := smsTestSender(t)
	res := s.Send(context.Background(), "0038988812345", "msg")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "invalid phone")
	assert.Zero(t, httpmock.GetTotalCallCount(), "no gateway call for invalid input")
}

func TestSMSSender_MissingCredentials(t *testing.T) {
	s := NewSMSSender(SMSConfig{}, nil)
	res := s.Send(context.Background(), "0888123456", "msg")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "not configured")
}
