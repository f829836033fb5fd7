package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{
		Name:    "  Jane  ",
		Email:   "jane@example.com",
		Subject: "Hello",
		Message: "line one\nline <b>two</b>",
	}
}

func TestNormalizeCaps(t *testing.T) {
	r := Request{
		Name:    strings.Repeat("n", 200),
		Email:   " a@b.co ",
		Subject: strings.Repeat("ś", 300),
		Message: strings.Repeat("m", 6000),
	}.Normalize()

	assert.Len(t, []rune(r.Name), MaxName)
	assert.Equal(t, "a@b.co", r.Email)
	assert.Len(t, []rune(r.Subject), MaxSubject)
	assert.Len(t, r.Message, MaxMessage)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validRequest().Normalize().Validate())

	r := validRequest()
	r.Subject = "   "
	assert.ErrorIs(t, r.Normalize().Validate(), ErrMissingFields)

	r = validRequest()
	r.Email = "not an email"
	assert.ErrorIs(t, r.Normalize().Validate(), ErrInvalidEmail)

	// Missing fields win over a bad address.
	r = Request{Email: "bad"}
	assert.ErrorIs(t, r.Validate(), ErrMissingFields)
}

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func newTestMailer(t *testing.T, srv *httptest.Server) *Mailer {
	t.Helper()
	m, err := NewMailer(Config{APIKey: "key", To: "me@example.com", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)
	return m
}

func TestSendDelivers(t *testing.T) {
	var got sentEmail
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	id, err := newTestMailer(t, srv).Send(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "/emails", path)
	assert.Equal(t, "Bearer key", auth)
	assert.Equal(t, DefaultFrom, got.From)
	assert.Equal(t, []string{"me@example.com"}, got.To)
	assert.Equal(t, "jane@example.com", got.ReplyTo)
	assert.Equal(t, "[Portfolio Contact] Hello", got.Subject)
	assert.Contains(t, got.HTML, "<h2>New Contact Message</h2>")
	assert.Contains(t, got.HTML, "<strong>Name:</strong> Jane</p>")
	assert.Contains(t, got.HTML, "line one<br/>line two")
	assert.NotContains(t, got.HTML, "<b>")
}

func TestSendProviderRejection(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusForbidden, `{"message":"domain not verified"}`, "domain not verified"},
		{http.StatusUnprocessableEntity, `{"statusCode":422,"name":"validation_error","message":"Invalid from address"}`, "Invalid from address"},
		{http.StatusTooManyRequests, `{"message":"slow down"}`, "slow down"},
		{http.StatusInternalServerError, `{}`, "Email service rejected the request."},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		_, err := newTestMailer(t, srv).Send(context.Background(), validRequest())
		srv.Close()

		var pe *ProviderError
		require.True(t, errors.As(err, &pe), tc.body)
		assert.Equal(t, tc.want, pe.Message)
	}
}

func TestSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	m := newTestMailer(t, srv)
	srv.Close()

	_, err := m.Send(context.Background(), validRequest())
	require.Error(t, err)
	var pe *ProviderError
	assert.False(t, errors.As(err, &pe))
}

func TestNewMailerRejectsBadBaseURL(t *testing.T) {
	_, err := NewMailer(Config{BaseURL: "http://[::1"}, nil)
	assert.Error(t, err)
}

func TestSendRequiresConfig(t *testing.T) {
	m, err := NewMailer(Config{To: "me@example.com"}, nil)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), validRequest())

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"RESEND_API_KEY"}, ce.Missing)

	// Validation runs before the configuration check.
	_, err = m.Send(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(0.001, 2)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	l.Reset()
	assert.True(t, l.Allow("1.1.1.1"))
}
