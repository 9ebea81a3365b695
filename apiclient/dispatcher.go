package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/robsondrs/erede-go/apierror"
	"github.com/robsondrs/erede-go/diagnostics"
	"github.com/robsondrs/erede-go/httpclient"
	"github.com/robsondrs/erede-go/oauth2client"
	"github.com/robsondrs/erede-go/store"
)

// HTTP methods used by the e.Rede API.
const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost
	MethodPut  = http.MethodPut
)

const (
	opRequest = "request"

	// TransactionResponseHeader asks the API for the opened brand return shape.
	TransactionResponseHeader = "Transaction-Response"
	TransactionResponseValue  = "brand-return-opened"

	jsonContentType = "application/json; charset=utf8"
)

// Request describes one API call.
type Request struct {
	Service string
	Method  string
	Body    []byte
}

// Response is the raw outcome of a call that reached the API.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Info       []diagnostics.InfoField
}

// Dispatcher sends authenticated requests for one credential store.
type Dispatcher struct {
	store      *store.Store
	tokens     *oauth2client.TokenManager
	httpClient *http.Client
	logger     diagnostics.Logger
	now        func() time.Time
	timeout    time.Duration

	platform        string
	platformVersion string
}

// Option is a functional option for configuring Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for API calls. It should not add its own Authorization
// header. The default is built by httpclient.Builder.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = client
	}
}

// WithTokenManager shares an existing token manager. It must manage the same store.
func WithTokenManager(tm *oauth2client.TokenManager) Option {
	return func(d *Dispatcher) {
		d.tokens = tm
	}
}

// WithLogger sets the diagnostics sink.
func WithLogger(logger diagnostics.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithPlatform appends "name/version" to the user agent. Both values must be non-empty.
func WithPlatform(name, version string) Option {
	return func(d *Dispatcher) {
		d.platform = name
		d.platformVersion = version
	}
}

// WithTimeout bounds each call, token exchange included. Zero leaves only the HTTP client's timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithClock replaces time.Now for token expiry decisions of the default token manager.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a dispatcher for st.
func New(st *store.Store, opts ...Option) (*Dispatcher, error) {
	if st == nil {
		return nil, errors.New("apiclient: store is nil")
	}

	d := &Dispatcher{
		store: st,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.httpClient == nil {
		client, err := httpclient.NewBuilder().Build()
		if err != nil {
			return nil, fmt.Errorf("apiclient: build HTTP client: %w", err)
		}
		d.httpClient = client
	}

	if d.tokens == nil {
		d.tokens = oauth2client.NewTokenManager(st,
			oauth2client.WithHTTPClient(d.httpClient),
			oauth2client.WithLogger(d.logger),
			oauth2client.WithClock(d.now),
		)
	} else if d.tokens.Store() != st {
		return nil, errors.New("apiclient: token manager belongs to a different store")
	}

	return d, nil
}

// Store returns the credential store.
func (d *Dispatcher) Store() *store.Store {
	return d.store
}

// TokenManager returns the token manager used for bearer tokens.
func (d *Dispatcher) TokenManager() *oauth2client.TokenManager {
	return d.tokens
}

// Do sends r and returns the raw response. The status code is not interpreted.
//
// Token acquisition errors are returned unchanged. Connector failures yield
// *apierror.TransportError and unreadable bodies *apierror.ProtocolError.
func (d *Dispatcher) Do(ctx context.Context, r Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	method := r.Method
	if method == "" {
		method = MethodGet
	}
	target := d.store.Environment().Endpoint(r.Service)

	token, err := d.tokens.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := d.headers(token, len(r.Body) > 0)

	var body io.Reader
	if len(r.Body) > 0 && method != MethodGet {
		body = bytes.NewReader(r.Body)
	}

	collector := &traceCollector{}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, collector.clientTrace()), method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	headers.apply(req)

	diagnostics.Printf(d.logger, "%s", diagnostics.RequestTrace(method, target, headers.redacted().Lines(), string(r.Body)))

	collector.start = time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.traceResponse(0, nil, collector.info(target, nil, 0))
		return nil, apierror.NewTransportError(opRequest, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	info := collector.info(target, resp, len(raw))
	d.traceResponse(resp.StatusCode, raw, info)

	if readErr != nil {
		return nil, &apierror.ProtocolError{
			Op:         opRequest,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("error obtaining a response from the API: %w", readErr),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Header:     resp.Header,
		Info:       info,
	}, nil
}

func (d *Dispatcher) traceResponse(statusCode int, body []byte, info []diagnostics.InfoField) {
	if d.logger == nil {
		return
	}

	d.logger.Printf("%s", diagnostics.ResponseTrace(statusCode, string(body)))
	diagnostics.DumpInfo(d.logger, info)
}

// ResponseParser turns a raw body and status code into an endpoint result.
type ResponseParser[T any] func(body string, statusCode int) (T, error)

// Send performs the call and hands the response to parse, returning its result unchanged.
func Send[T any](ctx context.Context, d *Dispatcher, service string, body []byte, method string, parse ResponseParser[T]) (T, error) {
	var zero T

	if parse == nil {
		return zero, errors.New("apiclient: response parser is nil")
	}

	resp, err := d.Do(ctx, Request{Service: service, Method: method, Body: body})
	if err != nil {
		return zero, err
	}

	return parse(string(resp.Body), resp.StatusCode)
}
