// Package apiclient dispatches authenticated requests to the e.Rede API and hands the raw
// responses to endpoint-specific parsers.
//
// A Dispatcher resolves the target URL from the store's environment, builds the fixed header
// set (user agent, Accept, Transaction-Response), attaches a bearer token from the token
// manager, sends the request over TLS 1.2+ and returns the status code and body untouched.
// Classifying a response as approved, declined or failed is the parser's job.
//
// # Quick Start
//
//	st := store.New("filiation", "secret", environment.ForSandbox())
//	d, err := apiclient.New(st,
//	    apiclient.WithLogger(diagnostics.NewLogrusLogger(logrus.StandardLogger())),
//	    apiclient.WithPlatform("my-shop", "2.3.0"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tx, err := apiclient.Send(ctx, d, "transactions", body, apiclient.MethodPost, parseTransaction)
//
// Every call emits a request trace (card fields masked), a response trace and one line per
// transport metric to the configured logger.
package apiclient
