package apiclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync"
	"time"

	"github.com/robsondrs/erede-go/diagnostics"
)

// traceCollector records connection milestones of a single request.
type traceCollector struct {
	mu sync.Mutex

	start        time.Time
	dnsDone      time.Time
	connectDone  time.Time
	tlsDone      time.Time
	firstByte    time.Time
	remoteAddr   string
	reused       bool
	tlsHandshake *tls.ConnectionState
}

func (c *traceCollector) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) {
			c.mark(&c.dnsDone)
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				c.mark(&c.connectDone)
			}
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.tlsDone = time.Now()
			if err == nil {
				c.tlsHandshake = &state
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.reused = info.Reused
			if info.Conn != nil {
				c.remoteAddr = info.Conn.RemoteAddr().String()
			}
		},
		GotFirstResponseByte: func() {
			c.mark(&c.firstByte)
		},
	}
}

func (c *traceCollector) mark(t *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*t = time.Now()
}

func (c *traceCollector) since(t time.Time) string {
	if t.IsZero() || c.start.IsZero() {
		return "0.000000"
	}
	return fmt.Sprintf("%.6f", t.Sub(c.start).Seconds())
}

// info renders the collected metadata. resp may be nil when the transport failed.
func (c *traceCollector) info(url string, resp *http.Response, size int) []diagnostics.InfoField {
	c.mu.Lock()
	defer c.mu.Unlock()

	statusCode := 0
	contentType := ""
	if resp != nil {
		statusCode = resp.StatusCode
		contentType = resp.Header.Get("Content-Type")
	}

	fields := []diagnostics.InfoField{
		{Key: "url", Value: url},
		{Key: "http_code", Value: strconv.Itoa(statusCode)},
		{Key: "content_type", Value: contentType},
		{Key: "primary_ip", Value: c.remoteAddr},
		{Key: "reused_connection", Value: strconv.FormatBool(c.reused)},
		{Key: "namelookup_time", Value: c.since(c.dnsDone)},
		{Key: "connect_time", Value: c.since(c.connectDone)},
		{Key: "appconnect_time", Value: c.since(c.tlsDone)},
		{Key: "starttransfer_time", Value: c.since(c.firstByte)},
		{Key: "total_time", Value: c.since(time.Now())},
		{Key: "size_download", Value: strconv.Itoa(size)},
	}

	state := c.tlsHandshake
	if resp != nil && resp.TLS != nil {
		state = resp.TLS
	}
	if state == nil {
		return fields
	}

	fields = append(fields,
		diagnostics.InfoField{Key: "ssl_version", Value: tls.VersionName(state.Version)},
		diagnostics.InfoField{Key: "ssl_cipher", Value: tls.CipherSuiteName(state.CipherSuite)},
		diagnostics.InfoField{Key: "ssl_server_name", Value: state.ServerName},
	)

	certs := make([]diagnostics.InfoItem, 0, len(state.PeerCertificates))
	for i, cert := range state.PeerCertificates {
		certs = append(certs, diagnostics.InfoItem{
			Key: strconv.Itoa(i),
			Values: []string{
				"Subject:" + cert.Subject.String(),
				"Issuer:" + cert.Issuer.String(),
				"Expire date:" + cert.NotAfter.UTC().Format(time.RFC3339),
			},
		})
	}
	fields = append(fields, diagnostics.InfoField{Key: "certinfo", Items: certs})

	return fields
}
