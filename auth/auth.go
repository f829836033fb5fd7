// Package auth decides who may reach the admin panel. A Provider reports
// the signed-in identity of a browser session; the Gate checks that
// identity against a fixed allow-list every time it changes.
package auth

import (
	"strings"
	"sync"
)

// Identity is a signed-in user as reported by the provider.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// DisplayName returns the name, falling back to the email address.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// AllowList is the set of email addresses permitted to use the admin panel.
// Matching is case-insensitive. The zero value allows nobody.
type AllowList struct {
	emails map[string]struct{}
}

// ParseAllowList reads a comma separated list of addresses.
func ParseAllowList(csv string) AllowList {
	a := AllowList{emails: map[string]struct{}{}}
	for _, e := range strings.Split(csv, ",") {
		e = normalizeEmail(e)
		if e != "" {
			a.emails[e] = struct{}{}
		}
	}
	return a
}

// Allows reports whether email is on the list.
func (a AllowList) Allows(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := a.emails[email]
	return ok
}

// Len returns the number of allowed addresses.
func (a AllowList) Len() int { return len(a.emails) }

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Provider is the identity provider. Observe calls fn with the current
// identity of the session (nil when signed out) and again after every
// change, until the returned function is called.
type Provider interface {
	Observe(sessionID string, fn func(*Identity)) (cancel func())
}

// Gate admits sessions whose identity is on the allow-list.
type Gate struct {
	allow    AllowList
	provider Provider
}

// NewGate returns a Gate enforcing allow over identities from provider.
func NewGate(allow AllowList, provider Provider) *Gate {
	return &Gate{allow: allow, provider: provider}
}

// Authorized reports whether id may use the admin panel.
func (g *Gate) Authorized(id *Identity) bool {
	return id != nil && g.allow.Allows(id.Email)
}

// Observe re-evaluates the session on every identity change, calling
// onAuthorized for an allowed identity and onUnauthorized otherwise. The
// returned function stops observing.
func (g *Gate) Observe(sessionID string, onAuthorized func(Identity), onUnauthorized func()) (cancel func()) {
	return g.provider.Observe(sessionID, func(id *Identity) {
		if g.Authorized(id) {
			onAuthorized(*id)
			return
		}
		onUnauthorized()
	})
}

// Check evaluates the session once.
func (g *Gate) Check(sessionID string) (Identity, bool) {
	var (
		mu  sync.Mutex
		got Identity
		ok  bool
		set bool
	)
	stop := g.Observe(sessionID, func(id Identity) {
		mu.Lock()
		defer mu.Unlock()
		if !set {
			got, ok, set = id, true, true
		}
	}, func() {
		mu.Lock()
		set = true
		mu.Unlock()
	})
	stop()
	mu.Lock()
	defer mu.Unlock()
	return got, ok
}
