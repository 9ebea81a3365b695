// Package diagnostics defines the trace sink used by the request pipeline and the redaction
// applied to everything written to it.
//
// A sink is anything with a Printf method: *log.Logger, *logrus.Logger, or the debug-level
// adapter returned by NewLogrusLogger. A nil sink discards everything. Diagnostics are
// best-effort and never influence the outcome of a request.
//
// Request bodies pass through Redact before they reach the sink, which masks the values of
// cardHolderName, cardnumber and securitycode regardless of key case or nesting depth.
package diagnostics
