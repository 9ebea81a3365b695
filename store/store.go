package store

import (
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/robsondrs/erede-go/environment"
)

// Store holds the merchant identity (filiation and shared secret), the target environment
// and the cached bearer token.
type Store struct {
	mu sync.RWMutex

	filiation string
	secret    string
	env       *environment.Environment

	bearerToken string
	expiresAt   int64 // absolute epoch seconds, meaningful only when bearerToken != ""
}

// New creates a store for the given filiation and shared secret.
// A nil environment selects production.
func New(filiation, secret string, env *environment.Environment) *Store {
	if env == nil {
		env = environment.ForProduction()
	}

	return &Store{
		filiation: filiation,
		secret:    secret,
		env:       env,
	}
}

// Filiation returns the merchant identifier.
func (s *Store) Filiation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filiation
}

// SetFiliation replaces the merchant identifier.
func (s *Store) SetFiliation(filiation string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filiation = filiation
	return s
}

// Secret returns the shared secret used for the client-credentials exchange.
func (s *Store) Secret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

// SetSecret replaces the shared secret.
func (s *Store) SetSecret(secret string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	return s
}

// Environment returns the target environment.
func (s *Store) Environment() *environment.Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

// SetEnvironment switches the target environment. A nil environment is ignored.
func (s *Store) SetEnvironment(env *environment.Environment) *Store {
	if env == nil {
		return s
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = env
	return s
}

// SetBearerToken caches a bearer token with its absolute expiry in epoch seconds.
// An empty token clears the cache.
func (s *Store) SetBearerToken(token string, expiresAt int64) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		s.bearerToken, s.expiresAt = "", 0
		return s
	}

	s.bearerToken, s.expiresAt = token, expiresAt
	return s
}

// BearerToken returns the cached token and its expiry. ok is false when no token is cached,
// in which case both other values are zero.
func (s *Store) BearerToken() (token string, expiresAt int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.bearerToken == "" {
		return "", 0, false
	}
	return s.bearerToken, s.expiresAt, true
}

// ClearBearerToken drops the cached token.
func (s *Store) ClearBearerToken() *Store {
	return s.SetBearerToken("", 0)
}

// OAuth2Token returns the cached token as an *oauth2.Token, or nil when none is cached.
// The returned value is a copy.
func (s *Store) OAuth2Token() *oauth2.Token {
	token, expiresAt, ok := s.BearerToken()
	if !ok {
		return nil
	}

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      time.Unix(expiresAt, 0),
	}
}
