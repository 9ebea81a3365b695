// Package store holds the long-lived API identity of an e.Rede merchant together with the
// cached OAuth2 bearer token.
//
// A Store is the credential state of one logical API client session. It is passed
// explicitly to the token manager and the request dispatcher; there is no process-wide
// instance. The bearer token and its absolute expiry are always read and written as a pair.
package store
