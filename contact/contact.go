// Package contact validates contact form submissions and forwards them to
// the Resend transactional email API.
package contact

import (
	"errors"
	"regexp"
	"strings"
)

// Field length caps, in characters.
const (
	MaxName    = 120
	MaxEmail   = 200
	MaxSubject = 180
	MaxMessage = 5000
)

var (
	ErrMissingFields = errors.New("Missing required fields.")
	ErrInvalidEmail  = errors.New("Invalid email format.")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Request is a contact form submission.
type Request struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

// Normalize trims every field and cuts it to its length cap.
func (r Request) Normalize() Request {
	return Request{
		Name:    clip(r.Name, MaxName),
		Email:   clip(r.Email, MaxEmail),
		Subject: clip(r.Subject, MaxSubject),
		Message: clip(r.Message, MaxMessage),
	}
}

// Validate reports missing fields before a malformed address.
func (r Request) Validate() error {
	if r.Name == "" || r.Email == "" || r.Subject == "" || r.Message == "" {
		return ErrMissingFields
	}
	if !emailPattern.MatchString(r.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// ConfigError reports missing mail credentials.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "Contact API not configured. Missing RESEND_API_KEY or CONTACT_RECEIVER_EMAIL."
}

// ProviderError is a rejection from the email provider.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
