package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// TokenProvider supplies bearer tokens. *oauth2client.TokenManager implements it.
// An empty token with a nil error means the request is sent without Authorization.
type TokenProvider interface {
	EnsureToken(ctx context.Context) (string, error)
}

// OAuth2Transport is an http.RoundTripper that adds "Authorization: Bearer <token>" to
// outgoing requests.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Tokens provides access tokens.
	Tokens TokenProvider
}

// RoundTrip implements http.RoundTripper interface.
// The token fetch respects the request context's cancellation and deadline.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Tokens == nil {
		return nil, fmt.Errorf("httpclient: TokenProvider is nil")
	}

	token, err := t.Tokens.EnsureToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if token == "" {
		return base.RoundTrip(req)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+token)

	return base.RoundTrip(reqClone)
}

// NewOAuth2Transport creates a new OAuth2Transport.
// The base transport defaults to http.DefaultTransport if not specified.
func NewOAuth2Transport(tokens TokenProvider, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:   base,
		Tokens: tokens,
	}
}
