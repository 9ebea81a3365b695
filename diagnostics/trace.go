package diagnostics

import (
	"fmt"
	"strings"
)

// RequestTrace formats an outbound request. The body is redacted.
func RequestTrace(method, url string, headerLines []string, body string) string {
	return strings.TrimSpace(fmt.Sprintf(
		"Request Rede\n%s %s\n%s\n\n%s",
		method,
		url,
		strings.Join(headerLines, "\n"),
		Redact(body),
	))
}

// ResponseTrace formats an inbound response.
func ResponseTrace(statusCode int, body string) string {
	return fmt.Sprintf("Response Rede\nStatus Code: %d\n\n%s", statusCode, body)
}

// InfoField is one entry of transport metadata. Fields with Items are dumped one line per item.
type InfoField struct {
	Key   string
	Value string
	Items []InfoItem
}

// InfoItem is a keyed list value nested in an InfoField.
type InfoItem struct {
	Key    string
	Values []string
}

// DumpInfo writes one line per field, or one line per item for list-valued fields.
func DumpInfo(l Logger, fields []InfoField) {
	if l == nil {
		return
	}

	for _, f := range fields {
		if f.Items != nil {
			for _, item := range f.Items {
				l.Printf("Transport[%s][%s]: %s", f.Key, item.Key, strings.Join(item.Values, ","))
			}
			continue
		}
		l.Printf("Transport[%s]: %s", f.Key, f.Value)
	}
}
