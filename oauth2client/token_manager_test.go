package oauth2client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/robsondrs/erede-go/apierror"
	"github.com/robsondrs/erede-go/environment"
	itestutil "github.com/robsondrs/erede-go/internal/testutil"
	"github.com/robsondrs/erede-go/store"
	"github.com/robsondrs/erede-go/testutil"
)

const mockBaseURL = "https://mock-oauth.example.com"

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, len(l.messages))
	copy(msgs, l.messages)
	return msgs
}

func newTestStore() *store.Store {
	return store.New("filiation-1", "secret-1", environment.NewCustom(mockBaseURL))
}

func newTestManager(tb testing.TB, handler testutil.RoundTripFunc, clock *itestutil.Clock, opts ...Option) (*TokenManager, *store.Store, *testutil.MockOAuth2Server) {
	tb.Helper()

	server := testutil.NewMockOAuth2Server(tb, handler)
	st := newTestStore()

	opts = append([]Option{WithHTTPClient(server.Client()), WithClock(clock.Now)}, opts...)
	return NewTokenManager(st, opts...), st, server
}

func TestNewTokenManager(t *testing.T) {
	st := newTestStore()
	tm := NewTokenManager(st)

	if tm.Store() != st {
		t.Error("store not set")
	}
	if tm.httpClient == nil {
		t.Fatal("default HTTP client should be set")
	}
	if tm.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected 30s default timeout, got %v", tm.httpClient.Timeout)
	}
	if tm.now == nil {
		t.Error("clock should default to time.Now")
	}
	if tm.group != nil {
		t.Error("single flight must be off by default")
	}
	if tm.logger != nil {
		t.Error("logger must be nil by default")
	}
}

func TestTokenManager_EnsureToken_CachedTokenNoNetwork(t *testing.T) {
	clock := itestutil.NewClock(1700)
	tm, st, server := newTestManager(t, nil, clock)

	// Token issued at epoch 1000 for 3600s.
	st.SetBearerToken("original", 4600)

	token, err := tm.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != "original" {
		t.Errorf("expected cached token, got %q", token)
	}
	if n := len(server.Requests()); n != 0 {
		t.Errorf("expected no token exchange, got %d requests", n)
	}
}

func TestTokenManager_EnsureToken_RefreshesWithinMargin(t *testing.T) {
	tests := []struct {
		name      string
		cached    string
		expiresAt int64
	}{
		{name: "absent token"},
		{name: "already expired", cached: "old", expiresAt: 900},
		{name: "expires exactly at margin", cached: "old", expiresAt: 1060},
		{name: "expires inside margin", cached: "old", expiresAt: 1030},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := itestutil.NewClock(1000)
			tm, st, server := newTestManager(t, testutil.TokenResponse("fresh", 3600), clock)
			if tt.cached != "" {
				st.SetBearerToken(tt.cached, tt.expiresAt)
			}

			token, err := tm.EnsureToken(context.Background())
			if err != nil {
				t.Fatalf("EnsureToken failed: %v", err)
			}
			if token != "fresh" {
				t.Errorf("expected fresh token, got %q", token)
			}
			if n := len(server.Requests()); n != 1 {
				t.Errorf("expected exactly one exchange, got %d", n)
			}
		})
	}
}

func TestTokenManager_EnsureToken_StoresExpiryWithMargin(t *testing.T) {
	clock := itestutil.NewClock(5000)
	tm, st, server := newTestManager(t, testutil.TokenResponse("abc", 120), clock)

	token, err := tm.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != "abc" {
		t.Fatalf("unexpected token %q", token)
	}

	cached, expiresAt, ok := st.BearerToken()
	if !ok || cached != "abc" {
		t.Fatalf("token not stored: %q %v", cached, ok)
	}
	if expiresAt != 5060 {
		t.Errorf("expected expiry 5060, got %d", expiresAt)
	}

	// 5005 + 60 = 5065 > 5060: the cached token is no longer usable.
	clock.Set(5005)
	if _, err := tm.EnsureToken(context.Background()); err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if n := len(server.Requests()); n != 2 {
		t.Errorf("expected a second exchange, got %d requests", n)
	}
}

func TestTokenManager_EnsureToken_ReusesUntilMargin(t *testing.T) {
	clock := itestutil.NewClock(5000)
	tm, _, server := newTestManager(t, testutil.TokenResponse("abc", 3600), clock)

	for _, now := range []int64{5000, 5010, 8000, 8479} {
		clock.Set(now)
		token, err := tm.EnsureToken(context.Background())
		if err != nil {
			t.Fatalf("EnsureToken at %d failed: %v", now, err)
		}
		if token != "abc" {
			t.Errorf("unexpected token at %d: %q", now, token)
		}
	}
	if n := len(server.Requests()); n != 1 {
		t.Errorf("expected one exchange, got %d", n)
	}

	// Stored expiry is 8540; at 8480 the margin is reached.
	clock.Set(8480)
	if _, err := tm.EnsureToken(context.Background()); err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if n := len(server.Requests()); n != 2 {
		t.Errorf("expected refresh at margin, got %d requests", n)
	}
}

func TestTokenManager_EnsureToken_RequestShape(t *testing.T) {
	clock := itestutil.NewClock(1000)
	tm, st, server := newTestManager(t, testutil.TokenResponse("abc", 3600), clock)
	st.SetFiliation("1234").SetSecret("s3cr:t/+&")

	if _, err := tm.EnsureToken(context.Background()); err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}

	reqs := server.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	req := reqs[0]

	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.URL != mockBaseURL+"/oauth2/token" {
		t.Errorf("unexpected token URL: %s", req.URL)
	}
	if req.Body != "grant_type=client_credentials" {
		t.Errorf("unexpected body: %q", req.Body)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type: %q", ct)
	}
	if accept := req.Header.Get("Accept"); accept != "application/json" {
		t.Errorf("unexpected accept: %q", accept)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("1234:s3cr:t/+&"))
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTokenManager_EnsureToken_TransportError(t *testing.T) {
	clock := itestutil.NewClock(1000)
	tm, st, _ := newTestManager(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}, clock)
	st.SetBearerToken("stale", 500)

	_, err := tm.EnsureToken(context.Background())

	var terr *apierror.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if !strings.Contains(terr.Error(), "connection refused") {
		t.Errorf("cause missing from message: %v", terr)
	}

	token, expiresAt, _ := st.BearerToken()
	if token != "stale" || expiresAt != 500 {
		t.Errorf("store must be unchanged, got %q %d", token, expiresAt)
	}
}

func TestTokenManager_EnsureToken_ProtocolError(t *testing.T) {
	bodies := map[string]string{
		"html":   "<html>bad gateway</html>",
		"null":   "null",
		"array":  `["access_token"]`,
		"empty":  "",
		"string": `"abc"`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			clock := itestutil.NewClock(1000)
			tm, st, _ := newTestManager(t, testutil.JSONResponse(http.StatusBadGateway, body), clock)

			_, err := tm.EnsureToken(context.Background())

			var perr *apierror.ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProtocolError, got %T: %v", err, err)
			}
			if perr.StatusCode != http.StatusBadGateway {
				t.Errorf("expected status 502, got %d", perr.StatusCode)
			}
			if _, _, ok := st.BearerToken(); ok {
				t.Error("store must stay empty")
			}
		})
	}
}

func TestTokenManager_EnsureToken_AuthError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		description string
		code        string
	}{
		{
			name:        "error description wins",
			status:      http.StatusUnauthorized,
			body:        `{"error":"invalid_client","error_description":"Client authentication failed"}`,
			description: "Client authentication failed",
			code:        "invalid_client",
		},
		{
			name:        "error code fallback",
			status:      http.StatusBadRequest,
			body:        `{"error":"unsupported_grant_type"}`,
			description: "unsupported_grant_type",
			code:        "unsupported_grant_type",
		},
		{
			name:        "generic message",
			status:      http.StatusOK,
			body:        `{"token_type":"Bearer"}`,
			description: "Unknown error obtaining access token",
		},
		{
			name:        "empty access token",
			status:      http.StatusOK,
			body:        `{"access_token":"","expires_in":3600}`,
			description: "Unknown error obtaining access token",
		},
		{
			name:        "non-string access token",
			status:      http.StatusOK,
			body:        `{"access_token":12345,"expires_in":3600}`,
			description: "Unknown error obtaining access token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := itestutil.NewClock(1000)
			tm, st, _ := newTestManager(t, testutil.JSONResponse(tt.status, tt.body), clock)
			st.SetBearerToken("stale", 10)

			_, err := tm.EnsureToken(context.Background())

			var aerr *apierror.AuthError
			if !errors.As(err, &aerr) {
				t.Fatalf("expected AuthError, got %T: %v", err, err)
			}
			if aerr.Description != tt.description {
				t.Errorf("expected description %q, got %q", tt.description, aerr.Description)
			}
			if aerr.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, aerr.Code)
			}
			if aerr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, aerr.StatusCode)
			}

			token, expiresAt, _ := st.BearerToken()
			if token != "stale" || expiresAt != 10 {
				t.Errorf("store must be unchanged, got %q %d", token, expiresAt)
			}
		})
	}
}

func TestTokenManager_EnsureToken_ExpiresInVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{name: "integer", body: `{"access_token":"a","expires_in":300}`, want: 1000 + 300 - 60},
		{name: "numeric string", body: `{"access_token":"a","expires_in":"300"}`, want: 1000 + 300 - 60},
		{name: "float", body: `{"access_token":"a","expires_in":300.9}`, want: 1000 + 300 - 60},
		{name: "missing", body: `{"access_token":"a"}`, want: 1000 - 60},
		{name: "garbage", body: `{"access_token":"a","expires_in":"soon"}`, want: 1000 - 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := itestutil.NewClock(1000)
			tm, st, _ := newTestManager(t, testutil.StaticJSONResponse(tt.body), clock)

			if _, err := tm.EnsureToken(context.Background()); err != nil {
				t.Fatalf("EnsureToken failed: %v", err)
			}
			if _, expiresAt, _ := st.BearerToken(); expiresAt != tt.want {
				t.Errorf("expected expiry %d, got %d", tt.want, expiresAt)
			}
		})
	}
}

func TestTokenManager_EnsureToken_JWTExpiryFallback(t *testing.T) {
	clock := itestutil.NewClock(1_700_000_000)
	jwtToken := itestutil.MintJWT(t, clock.Now().Add(10*time.Minute))

	tm, st, _ := newTestManager(t,
		testutil.StaticJSONResponse(fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer"}`, jwtToken)),
		clock,
	)

	token, err := tm.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != jwtToken {
		t.Error("expected the JWT access token")
	}

	_, expiresAt, _ := st.BearerToken()
	if want := clock.Now().Unix() + 600 - 60; expiresAt != want {
		t.Errorf("expected expiry %d from exp claim, got %d", want, expiresAt)
	}
}

func TestJWTExpiry(t *testing.T) {
	if _, ok := jwtExpiry("opaque-token"); ok {
		t.Error("opaque token has no expiry")
	}
	if _, ok := jwtExpiry("a.b.c"); ok {
		t.Error("malformed JWT has no expiry")
	}
	if _, ok := jwtExpiry(itestutil.MintJWT(t, time.Time{})); ok {
		t.Error("JWT without exp has no expiry")
	}

	exp := time.Unix(2_000_000_000, 0)
	got, ok := jwtExpiry(itestutil.MintJWT(t, exp))
	if !ok || !got.Equal(exp) {
		t.Errorf("expected %v, got %v (%v)", exp, got, ok)
	}
}

func TestTokenManager_EnsureToken_UnauthenticatedEnvironment(t *testing.T) {
	clock := itestutil.NewClock(1000)
	tm, st, server := newTestManager(t, nil, clock)
	st.Environment().SetTokenURL("")

	token, err := tm.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != "" {
		t.Errorf("expected no token, got %q", token)
	}
	if len(server.Requests()) != 0 {
		t.Error("no exchange expected for unauthenticated environment")
	}
}

func TestTokenManager_EnsureToken_NilContext(t *testing.T) {
	clock := itestutil.NewClock(1000)
	tm, _, _ := newTestManager(t, nil, clock)

	//lint:ignore SA1012 intentionally verify nil context falls back to background
	//nolint:staticcheck // golangci-lint
	token, err := tm.EnsureToken(nil)
	if err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}
	if token != "mock-access-token" {
		t.Errorf("unexpected token %q", token)
	}
}

func TestTokenManager_EnsureToken_ConcurrentWithoutSingleFlight(t *testing.T) {
	const goroutines = 4

	var (
		mu      sync.Mutex
		arrived int
		release = make(chan struct{})
	)

	handler := func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		arrived++
		n := arrived
		if n == goroutines {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(5 * time.Second):
			return nil, errors.New("not all callers reached the token endpoint")
		}

		return testutil.TokenResponse(fmt.Sprintf("token-%d", n), 3600)(req)
	}

	clock := itestutil.NewClock(1000)
	tm, st, server := newTestManager(t, handler, clock)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tm.EnsureToken(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("EnsureToken failed: %v", err)
	}

	if n := len(server.Requests()); n != goroutines {
		t.Errorf("expected %d redundant exchanges, got %d", goroutines, n)
	}
	if token, _, ok := st.BearerToken(); !ok || !strings.HasPrefix(token, "token-") {
		t.Errorf("expected one of the exchanged tokens to win, got %q", token)
	}
}

func TestTokenManager_EnsureToken_SingleFlight(t *testing.T) {
	const goroutines = 10

	handler := func(req *http.Request) (*http.Response, error) {
		time.Sleep(20 * time.Millisecond)
		return testutil.TokenResponse("shared", 3600)(req)
	}

	clock := itestutil.NewClock(1000)
	tm, _, server := newTestManager(t, handler, clock, WithSingleFlight())

	var wg sync.WaitGroup
	results := make(chan string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := tm.EnsureToken(context.Background())
			if err != nil {
				t.Errorf("EnsureToken failed: %v", err)
				return
			}
			results <- token
		}()
	}
	wg.Wait()
	close(results)

	for token := range results {
		if token != "shared" {
			t.Errorf("unexpected token %q", token)
		}
	}
	if n := len(server.Requests()); n != 1 {
		t.Errorf("expected one exchange with single flight, got %d", n)
	}
}

func TestTokenManager_WithLogger_RedactsToken(t *testing.T) {
	logger := &stubLogger{}
	clock := itestutil.NewClock(1000)
	tm, _, _ := newTestManager(t, testutil.TokenResponse("super-secret-token", 3600), clock, WithLogger(logger))

	if _, err := tm.EnsureToken(context.Background()); err != nil {
		t.Fatalf("EnsureToken failed: %v", err)
	}

	messages := logger.getMessages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %v", len(messages), messages)
	}
	if messages[0] != "Requesting OAuth2 token at "+mockBaseURL+"/oauth2/token" {
		t.Errorf("unexpected first line: %s", messages[0])
	}
	if !strings.HasPrefix(messages[1], "OAuth token response status=200 body=") {
		t.Errorf("unexpected response line: %s", messages[1])
	}
	for _, msg := range messages {
		if strings.Contains(msg, "super-secret-token") {
			t.Errorf("access token leaked into log: %s", msg)
		}
	}
	if !strings.Contains(messages[2], "obtained new access token") {
		t.Errorf("unexpected last line: %s", messages[2])
	}
}

func TestTokenManager_WithLoggingEnabled_SetsLogger(t *testing.T) {
	tm := NewTokenManager(newTestStore(), WithLoggingEnabled())
	if tm.logger == nil {
		t.Fatal("expected default logger")
	}
}

func TestTokenManager_TokenSource(t *testing.T) {
	clock := itestutil.NewClock(time.Now().Unix())
	handler := func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/oauth2/token") {
			return testutil.TokenResponse("ts-token", 3600)(req)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer ts-token" {
			return testutil.JSONResponse(http.StatusUnauthorized, `{}`)(req)
		}
		return testutil.StaticJSONResponse(`{"returnCode":"00"}`)(req)
	}
	tm, _, server := newTestManager(t, handler, clock)

	tok, err := tm.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if tok.AccessToken != "ts-token" || tok.TokenType != "Bearer" {
		t.Errorf("unexpected token: %+v", tok)
	}

	client := oauth2.NewClient(server.Ctx, tm.TokenSource(context.Background()))
	resp, err := client.Get(mockBaseURL + "/v1/transactions/1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if n := server.Count("/oauth2/token"); n != 1 {
		t.Errorf("expected a single exchange, got %d", n)
	}
}

func TestTokenManager_TokenSource_Unauthenticated(t *testing.T) {
	clock := itestutil.NewClock(1000)
	tm, st, _ := newTestManager(t, nil, clock)
	st.Environment().SetTokenURL("")

	if _, err := tm.TokenSource(context.Background()).Token(); err == nil {
		t.Error("expected error for unauthenticated environment")
	}
}
