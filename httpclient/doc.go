// Package httpclient builds the HTTP clients used to reach the e.Rede API and its OAuth2
// token endpoint.
//
// Every client it builds negotiates TLS 1.2 or newer and verifies the server certificate; there
// is no option to turn verification off. A custom CA and a client certificate can be supplied
// for private test environments.
//
// # Features
//
//   - Fluent Builder with timeout, base transport override and redirect disabling
//   - OAuth2Transport that injects a bearer token from any TokenProvider
//
// # Quick Start
//
//	tm := oauth2client.NewTokenManager(st)
//	client, err := httpclient.NewBuilder().
//	    WithTokenManager(tm).
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get(st.Environment().Endpoint("transactions?reference=order-1"))
package httpclient
