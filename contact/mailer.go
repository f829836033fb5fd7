package contact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/resend/resend-go/v2"
)

const (
	// DefaultBaseURL is the Resend API root.
	DefaultBaseURL = "https://api.resend.com/"
	// DefaultFrom is used when no sender address is configured.
	DefaultFrom   = "Portfolio Contact <onboarding@resend.dev>"
	subjectPrefix = "[Portfolio Contact] "
	errorPrefix   = "[ERROR]: "
)

// Config holds the mail credentials.
type Config struct {
	APIKey  string
	To      string
	From    string
	BaseURL string
}

// Check reports which required settings are missing.
func (c Config) Check() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if c.To == "" {
		missing = append(missing, "CONTACT_RECEIVER_EMAIL")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Mailer sends contact messages through Resend.
type Mailer struct {
	cfg    Config
	client *resend.Client
	policy *bluemonday.Policy
}

// NewMailer returns a Mailer. A nil client gets a default with a timeout.
// The base URL must parse; an empty one means the public Resend API.
func NewMailer(cfg Config, client *http.Client) (*Mailer, error) {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("contact: parsing mail base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	rc := resend.NewCustomClient(client, strings.TrimSpace(cfg.APIKey))
	rc.BaseURL = base
	return &Mailer{cfg: cfg, client: rc, policy: bluemonday.StrictPolicy()}, nil
}

// Send normalizes and validates r, then delivers it. It returns the
// provider's message id.
func (m *Mailer) Send(ctx context.Context, r Request) (string, error) {
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return "", err
	}
	if err := m.cfg.Check(); err != nil {
		return "", err
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.cfg.From,
		To:      []string{m.cfg.To},
		ReplyTo: r.Email,
		Subject: subjectPrefix + r.Subject,
		Html:    m.render(r),
	})
	if err != nil {
		return "", providerError(err)
	}
	return sent.Id, nil
}

// providerError turns an API rejection into a ProviderError. Network
// failures are returned wrapped.
func providerError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("sending email: %w", err)
	}
	var rl *resend.RateLimitError
	if errors.As(err, &rl) {
		return &ProviderError{Message: rl.Message}
	}
	msg := strings.TrimPrefix(err.Error(), errorPrefix)
	if msg == "" || msg == "Unknown Error" {
		msg = "Email service rejected the request."
	}
	return &ProviderError{Message: msg}
}

// render builds the HTML body. User input is reduced to escaped text.
func (m *Mailer) render(r Request) string {
	clean := func(s string) string { return m.policy.Sanitize(s) }
	message := strings.ReplaceAll(clean(r.Message), "\n", "<br/>")

	var b strings.Builder
	b.WriteString("<h2>New Contact Message</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", clean(r.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>\n", clean(r.Email))
	fmt.Fprintf(&b, "<p><strong>Subject:</strong> %s</p>\n", clean(r.Subject))
	b.WriteString("<p><strong>Message:</strong></p>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", message)
	return b.String()
}
