package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// csrfToken is a per-session CSRF token with expiration
type csrfToken struct {
	token     string
	expiresAt time.Time
}

// CSRFTokenStore manages CSRF tokens in memory, keyed by session id
type CSRFTokenStore struct {
	tokens map[string]*csrfToken
	mu     sync.RWMutex
	ttl    time.Duration
}

// NewCSRFTokenStore creates a new CSRF token store
func NewCSRFTokenStore(ttl time.Duration) *CSRFTokenStore {
	store := &CSRFTokenStore{
		tokens: make(map[string]*csrfToken),
		ttl:    ttl,
	}
	go store.cleanupExpired()
	return store
}

// Token returns the current token for a session, generating one if needed
func (s *CSRFTokenStore) Token(sessionID string) (string, error) {
	s.mu.RLock()
	existing, ok := s.tokens[sessionID]
	s.mu.RUnlock()
	if ok && time.Now().Before(existing.expiresAt) {
		return existing.token, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	s.mu.Lock()
	s.tokens[sessionID] = &csrfToken{token: token, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return token, nil
}

// Validate checks a submitted token against the session's stored token
func (s *CSRFTokenStore) Validate(sessionID, token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.tokens[sessionID]
	if !ok || time.Now().After(stored.expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored.token), []byte(token)) == 1
}

// Delete removes the token for a session
func (s *CSRFTokenStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionID)
}

// cleanupExpired removes expired tokens periodically
func (s *CSRFTokenStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for sessionID, token := range s.tokens {
			if now.After(token.expiresAt) {
				delete(s.tokens, sessionID)
			}
		}
		s.mu.Unlock()
	}
}
