package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Accounts maps lowercased email addresses to bcrypt password hashes.
type Accounts map[string]string

// ParseAccounts reads comma separated email=bcrypt-hash pairs.
func ParseAccounts(s string) (Accounts, error) {
	accounts := Accounts{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, hash, ok := strings.Cut(pair, "=")
		email = normalizeEmail(email)
		hash = strings.TrimSpace(hash)
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("malformed account entry %q", pair)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("account %s: %w", email, err)
		}
		accounts[email] = hash
	}
	return accounts, nil
}

// HashPassword returns a bcrypt hash suitable for AUTH_ACCOUNTS.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Sessions is an in-process identity provider keyed by browser session id.
// It verifies passwords against configured Accounts and notifies observers
// whenever a session signs in or out.
type Sessions struct {
	accounts Accounts

	mu        sync.Mutex
	current   map[string]Identity
	observers map[string]map[int]func(*Identity)
	nextID    int
}

// NewSessions returns a provider for the given accounts.
func NewSessions(accounts Accounts) *Sessions {
	return &Sessions{
		accounts:  accounts,
		current:   make(map[string]Identity),
		observers: make(map[string]map[int]func(*Identity)),
	}
}

// SignIn verifies the password for email and binds the identity to the
// session.
func (s *Sessions) SignIn(sessionID, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	hash, ok := s.accounts[email]
	if !ok || sessionID == "" {
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	id := Identity{Email: email, Name: nameFromEmail(email)}
	s.set(sessionID, &id)
	return id, nil
}

// Restore rebinds an identity carried by a signed session cookie, for
// sessions that predate a restart. Unknown accounts are ignored.
func (s *Sessions) Restore(sessionID, email string) (Identity, bool) {
	email = normalizeEmail(email)
	if _, ok := s.accounts[email]; !ok || sessionID == "" {
		return Identity{}, false
	}
	s.mu.Lock()
	if id, ok := s.current[sessionID]; ok {
		s.mu.Unlock()
		return id, true
	}
	s.mu.Unlock()
	id := Identity{Email: email, Name: nameFromEmail(email)}
	s.set(sessionID, &id)
	return id, true
}

// SignOut clears the session's identity.
func (s *Sessions) SignOut(sessionID string) {
	s.set(sessionID, nil)
}

// Current returns the session's identity, or nil when signed out.
func (s *Sessions) Current(sessionID string) *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.current[sessionID]
	if !ok {
		return nil
	}
	return &id
}

// Observe implements Provider.
func (s *Sessions) Observe(sessionID string, fn func(*Identity)) func() {
	s.mu.Lock()
	key := s.nextID
	s.nextID++
	set, ok := s.observers[sessionID]
	if !ok {
		set = make(map[int]func(*Identity))
		s.observers[sessionID] = set
	}
	set[key] = fn
	var current *Identity
	if id, ok := s.current[sessionID]; ok {
		current = &id
	}
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.observers[sessionID]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.observers, sessionID)
			}
		}
	}
}

func (s *Sessions) set(sessionID string, id *Identity) {
	s.mu.Lock()
	if id == nil {
		delete(s.current, sessionID)
	} else {
		s.current[sessionID] = *id
	}
	fns := make([]func(*Identity), 0, len(s.observers[sessionID]))
	for _, fn := range s.observers[sessionID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
