package apierror

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
)

// Transport failure codes reported by TransportError.Code.
const (
	CodeDNS      = "dns"
	CodeTLS      = "tls"
	CodeConnect  = "connect"
	CodeTimeout  = "timeout"
	CodeCanceled = "canceled"
	CodeIO       = "io"
	CodeUnknown  = "unknown"
)

// TransportError reports a failure below HTTP: the request never produced a response.
type TransportError struct {
	Op   string // "token" or "request"
	Code string
	Err  error
}

// NewTransportError wraps err, classifying it with Classify.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Code: Classify(err), Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error[%s]: %v", e.Op, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response that arrived but could not be used.
type ProtocolError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error (status %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// AuthError reports an OAuth2 exchange that completed without a usable access token.
// Description holds the provider's error_description or error field when present.
type AuthError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	return "oauth2: token error: " + e.Description
}

// Classify maps a transport error to one of the Code constants.
func Classify(err error) string {
	if err == nil {
		return CodeUnknown
	}

	if errors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return CodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeDNS
	}

	var (
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &recordErr), errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &invalidCert):
		return CodeTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return CodeConnect
		}
		return CodeIO
	}

	return CodeUnknown
}
