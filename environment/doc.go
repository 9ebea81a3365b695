// Package environment resolves the e.Rede API base URL and OAuth2 token endpoint
// for a logical environment.
//
// Two canonical environments exist, Production and Sandbox, each with a fixed API base URL
// and an independently hardcoded token endpoint. Custom environments derive their token
// endpoint from the base URL unless it is overridden explicitly.
//
// # Quick Start
//
//	env := environment.ForSandbox()
//	env.SetConsumer("203.0.113.10", "session-42")
//
//	env.Endpoint("transactions") // https://api.userede.com.br/desenvolvedores/v1/transactions
//	env.TokenURL()               // https://rl7-sandbox-api.useredecloud.com.br/oauth2/token
//
// Construction is pure; nothing in this package touches the network.
package environment
