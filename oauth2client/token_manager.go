package oauth2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/robsondrs/erede-go/apierror"
	"github.com/robsondrs/erede-go/diagnostics"
	"github.com/robsondrs/erede-go/httpclient"
	"github.com/robsondrs/erede-go/store"
)

// SafetyMargin is subtracted from the token lifetime on write and added to the current time on
// read, so a token is never handed out moments before it expires.
const SafetyMargin = 60 * time.Second

const (
	opToken              = "oauth2"
	maxTokenResponseSize = 1 << 20
	unknownTokenError    = "Unknown error obtaining access token"
)

// Logger is an interface for optional logging in TokenManager.
type Logger = diagnostics.Logger

// TokenManager obtains and caches bearer tokens for one credential store.
type TokenManager struct {
	store      *store.Store
	httpClient *http.Client
	now        func() time.Time
	logger     Logger
	group      *singleflight.Group
}

// Option is a functional option for configuring TokenManager.
type Option func(*TokenManager)

// WithLogger sets a custom logger for token exchange events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(tm *TokenManager) {
		tm.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(tm *TokenManager) {
		tm.logger = log.Default()
	}
}

// WithHTTPClient sets the client used for the token exchange.
// The default enforces TLS 1.2+ with peer verification and a 30s timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(tm *TokenManager) {
		if client != nil {
			tm.httpClient = client
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// WithSingleFlight makes concurrent callers share one in-flight exchange instead of each
// refreshing the token.
func WithSingleFlight() Option {
	return func(tm *TokenManager) {
		tm.group = &singleflight.Group{}
	}
}

// NewTokenManager creates a token manager that reads and writes the bearer token of st.
func NewTokenManager(st *store.Store, opts ...Option) *TokenManager {
	tm := &TokenManager{
		store: st,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(tm)
	}

	if tm.httpClient == nil {
		client, err := httpclient.NewBuilder().Build()
		if err != nil {
			client = &http.Client{Timeout: httpclient.DefaultTimeout}
		}
		tm.httpClient = client
	}

	return tm
}

// Store returns the credential store this manager writes to.
func (tm *TokenManager) Store() *store.Store {
	return tm.store
}

// EnsureToken returns a usable bearer token, exchanging credentials when the cached token is
// absent or expires within SafetyMargin.
//
// It returns "" and a nil error when the store's environment has no token endpoint.
func (tm *TokenManager) EnsureToken(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if token, ok := tm.cachedToken(); ok {
		return token, nil
	}

	if !tm.store.Environment().Authenticated() {
		return "", nil
	}

	if tm.group == nil {
		return tm.requestToken(ctx)
	}

	v, err, _ := tm.group.Do("token", func() (any, error) {
		// Another caller may have stored a token while we waited.
		if token, ok := tm.cachedToken(); ok {
			return token, nil
		}
		return tm.requestToken(ctx)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// cachedToken reports the cached token and whether it is still usable.
func (tm *TokenManager) cachedToken() (string, bool) {
	token, expiresAt, ok := tm.store.BearerToken()
	if !ok {
		return "", false
	}

	return token, expiresAt > tm.now().Add(SafetyMargin).Unix()
}

// requestToken performs the client-credentials exchange and stores the result.
func (tm *TokenManager) requestToken(ctx context.Context) (string, error) {
	tokenURL := tm.store.Environment().TokenURL()
	diagnostics.Printf(tm.logger, "Requesting OAuth2 token at %s", tokenURL)

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth2: build token request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(tm.store.Filiation(), tm.store.Secret())

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return "", apierror.NewTransportError(opToken, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return "", &apierror.ProtocolError{Op: opToken, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid OAuth token response: %w", err)}
	}

	diagnostics.Printf(tm.logger, "OAuth token response status=%d body=%s",
		resp.StatusCode, diagnostics.RedactFields(string(body), "access_token", "refresh_token"))

	payload, err := decodeTokenPayload(body)
	if err != nil {
		return "", &apierror.ProtocolError{Op: opToken, StatusCode: resp.StatusCode, Err: err}
	}

	accessToken, _ := payload["access_token"].(string)
	if accessToken == "" {
		return "", tokenError(resp.StatusCode, payload)
	}

	now := tm.now()
	expiresIn := parseExpiresIn(payload["expires_in"])
	if expiresIn <= 0 {
		if exp, ok := jwtExpiry(accessToken); ok {
			expiresIn = exp.Unix() - now.Unix()
		}
	}

	expiresAt := now.Unix() + expiresIn - int64(SafetyMargin/time.Second)
	tm.store.SetBearerToken(accessToken, expiresAt)

	diagnostics.Printf(tm.logger, "oauth2: obtained new access token (expires: %s)",
		time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))

	return accessToken, nil
}

func decodeTokenPayload(body []byte) (map[string]any, error) {
	var payload map[string]any

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("unable to parse OAuth token response: %w", err)
	}
	if payload == nil {
		return nil, errors.New("unable to parse OAuth token response: not a JSON object")
	}

	return payload, nil
}

// tokenError builds an AuthError preferring error_description over error.
func tokenError(statusCode int, payload map[string]any) *apierror.AuthError {
	code, _ := payload["error"].(string)
	description, _ := payload["error_description"].(string)

	switch {
	case description != "":
	case code != "":
		description = code
	default:
		description = unknownTokenError
	}

	return &apierror.AuthError{StatusCode: statusCode, Code: code, Description: description}
}

// parseExpiresIn accepts a JSON number or a numeric string. Anything else yields 0.
func parseExpiresIn(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
	}

	return 0
}

// jwtExpiry reads the exp claim of a JWT access token without verifying it.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// TokenSource adapts the manager to oauth2.TokenSource. Token fails for unauthenticated
// environments since oauth2 has no notion of an absent token.
func (tm *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, tm: tm}
}

type tokenSource struct {
	ctx context.Context
	tm  *TokenManager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	access, err := s.tm.EnsureToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, errors.New("oauth2: environment has no token endpoint")
	}

	tok := s.tm.store.OAuth2Token()
	if tok == nil || tok.AccessToken != access {
		tok = &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	}

	return tok, nil
}
