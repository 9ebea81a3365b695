package diagnostics

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

// Mask replaces every redacted value.
const Mask = "***"

// CardFields are the request body fields whose values never reach a sink.
var CardFields = []string{"cardHolderName", "cardnumber", "securitycode"}

// Redact masks the card fields in a JSON request body.
func Redact(body string) string {
	return RedactFields(body, CardFields...)
}

// RedactFields masks the values of the named fields, matched case-insensitively at any depth.
//
// The textual pass keeps the body byte-for-byte except for the masked values. When the body is
// valid JSON and a named field still carries an unmasked value afterwards (an escaped key, an
// object value), the body is re-encoded with the values masked instead.
func RedactFields(body string, fields ...string) string {
	if body == "" || len(fields) == 0 {
		return body
	}

	redacted := fieldPattern(fields).ReplaceAllString(body, `"${1}"${2}"`+Mask+`"`)

	var doc any
	dec := json.NewDecoder(strings.NewReader(redacted))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return redacted
	}

	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		names[strings.ToLower(f)] = struct{}{}
	}

	if !maskTree(doc, names) {
		return redacted
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return Mask
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

var patterns sync.Map // field list -> *regexp.Regexp

// fieldPattern matches "field": followed by a string (possibly unterminated) or a number.
func fieldPattern(fields []string) *regexp.Regexp {
	cacheKey := strings.Join(fields, "\x00")
	if re, ok := patterns.Load(cacheKey); ok {
		return re.(*regexp.Regexp)
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}

	re := regexp.MustCompile(`(?i)"(` + strings.Join(quoted, "|") + `)"(\s*:\s*)` +
		`("(?:[^"\\]|\\.)*(?:\\)?(?:"|$)|-?[0-9][0-9.eE+-]*)`)
	patterns.Store(cacheKey, re)
	return re
}

// maskTree masks named fields in place and reports whether any value had to be changed.
func maskTree(node any, names map[string]struct{}) bool {
	changed := false

	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if _, ok := names[strings.ToLower(key)]; ok {
				if s, isString := val.(string); (isString && s == Mask) || val == nil {
					continue
				}
				v[key] = Mask
				changed = true
				continue
			}
			if maskTree(val, names) {
				changed = true
			}
		}
	case []any:
		for _, val := range v {
			if maskTree(val, names) {
				changed = true
			}
		}
	}

	return changed
}
