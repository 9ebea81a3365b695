// Package oauth2client keeps a valid e.Rede bearer token in a credential store, performing the
// OAuth2 client-credentials exchange when the cached token is missing or about to expire.
//
// A cached token is reused while its expiry lies more than SafetyMargin in the future; the same
// margin is subtracted from expires_in when a fresh token is stored. Exchanges are synchronous
// and never retried. Failures surface as *apierror.TransportError, *apierror.ProtocolError or
// *apierror.AuthError and leave the store untouched.
//
// # Quick Start
//
//	st := store.New("filiation", "secret", environment.ForSandbox())
//	tm := oauth2client.NewTokenManager(st, oauth2client.WithLoggingEnabled())
//
//	token, err := tm.EnsureToken(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Interop
//
//   - TokenSource adapts the manager to golang.org/x/oauth2 (oauth2.NewClient, oauth2.ReuseTokenSource).
//   - UnaryClientInterceptor, StreamClientInterceptor and PerRPCCredentials inject the token into
//     gRPC metadata.
//
// # Concurrency
//
// EnsureToken may be called from several goroutines sharing one store. Without WithSingleFlight,
// callers that observe an expired token concurrently each perform an exchange and the last write
// wins. WithSingleFlight collapses concurrent exchanges into one.
package oauth2client
