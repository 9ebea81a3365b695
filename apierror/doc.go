// Package apierror defines the failure taxonomy of the authenticated request pipeline.
//
//   - TransportError: connector-level failure (DNS, TLS, connect, timeout). Carries a stable
//     code and the underlying cause.
//   - ProtocolError: the exchange completed but the body was absent or unparseable.
//   - AuthError: the OAuth2 exchange completed without yielding a usable token.
//
// All three are terminal for the current call. Nothing in this module retries them.
//
//	var terr *apierror.TransportError
//	if errors.As(err, &terr) {
//	    log.Printf("network problem [%s]: %v", terr.Code, terr.Err)
//	}
package apierror
