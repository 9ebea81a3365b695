// Package testutil provides helpers for testing code built on this module without reaching
// the real e.Rede API or its token endpoint.
package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RecordedRequest is a request seen by MockOAuth2Server with its body already read.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// MockOAuth2Server simulates the token endpoint (and, if the handler routes them, API calls)
// without real sockets. It records requests and serves responses through a RoundTripper.
type MockOAuth2Server struct {
	URL string
	// Ctx carries Client under oauth2.HTTPClient for golang.org/x/oauth2 helpers.
	Ctx context.Context

	client   *http.Client
	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockOAuth2Server builds a mock endpoint backed by an in-memory RoundTripper.
// If handler is nil, every request gets a successful token response.
func NewMockOAuth2Server(tb testing.TB, handler RoundTripFunc) *MockOAuth2Server {
	tb.Helper()

	server := &MockOAuth2Server{
		URL: "https://mock-oauth.example.com",
	}

	if handler == nil {
		handler = TokenResponse("mock-access-token", 3600)
	}

	rt := RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			_ = req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		server.mu.Lock()
		server.requests = append(server.requests, RecordedRequest{
			Method: req.Method,
			URL:    req.URL.String(),
			Header: req.Header.Clone(),
			Body:   string(body),
		})
		server.mu.Unlock()

		return handler(req)
	})

	server.client = &http.Client{Transport: rt}
	server.Ctx = context.WithValue(context.Background(), oauth2.HTTPClient, server.client)

	return server
}

// Client returns an *http.Client whose transport is the mock.
func (m *MockOAuth2Server) Client() *http.Client {
	return m.client
}

// Requests returns a copy of the recorded requests.
func (m *MockOAuth2Server) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns how many recorded requests had a URL ending in suffix.
func (m *MockOAuth2Server) Count(suffix string) int {
	n := 0
	for _, r := range m.Requests() {
		if strings.HasSuffix(strings.SplitN(r.URL, "?", 2)[0], suffix) {
			n++
		}
	}
	return n
}

// Close is a no-op to mirror httptest.Server usage in tests.
func (m *MockOAuth2Server) Close() {}

// JSONResponse returns a RoundTripper that always responds with status and body.
func JSONResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json")

		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// StaticJSONResponse returns a RoundTripper that always responds 200 with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return JSONResponse(http.StatusOK, body)
}

// TokenResponse returns a RoundTripper that serves a client-credentials token response.
func TokenResponse(accessToken string, expiresIn int) RoundTripFunc {
	return StaticJSONResponse(fmt.Sprintf(
		`{"access_token":%q,"token_type":"Bearer","expires_in":%d}`, accessToken, expiresIn))
}

// WriteTestCACert writes a self-signed CA certificate to the provided path for TLS tests.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		tb.Fatalf("failed to write CA certificate: %v", err)
	}
}
