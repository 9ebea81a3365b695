package apiclient

import (
	"net/http"
	"strconv"
	"strings"
)

// Header is one request header line.
type Header struct {
	Name  string
	Value string
}

func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// Headers is an ordered header list.
type Headers []Header

// Lines renders each header as "Name: Value".
func (h Headers) Lines() []string {
	lines := make([]string, len(h))
	for i, header := range h {
		lines[i] = header.String()
	}
	return lines
}

// Get returns the first value for name, matched case-insensitively.
func (h Headers) Get(name string) string {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// redacted returns a copy with the bearer token masked.
func (h Headers) redacted() Headers {
	out := make(Headers, len(h))
	for i, header := range h {
		if strings.EqualFold(header.Name, "Authorization") && strings.HasPrefix(header.Value, "Bearer ") {
			header.Value = "Bearer ***"
		}
		out[i] = header
	}
	return out
}

func (h Headers) apply(req *http.Request) {
	for _, header := range h {
		if strings.EqualFold(header.Name, "Content-Length") {
			// net/http derives the header from ContentLength.
			if n, err := strconv.ParseInt(header.Value, 10, 64); err == nil {
				req.ContentLength = n
			}
			continue
		}
		req.Header.Add(header.Name, header.Value)
	}
}

// headers builds the header list for one call.
func (d *Dispatcher) headers(token string, hasBody bool) Headers {
	headers := Headers{
		{Name: "User-Agent", Value: d.UserAgent()},
		{Name: "Accept", Value: "application/json"},
		{Name: TransactionResponseHeader, Value: TransactionResponseValue},
	}

	if token != "" {
		headers = append(headers, Header{Name: "Authorization", Value: "Bearer " + token})
	}

	if hasBody {
		headers = append(headers, Header{Name: "Content-Type", Value: jsonContentType})
	} else {
		headers = append(headers, Header{Name: "Content-Length", Value: "0"})
	}

	return headers
}
