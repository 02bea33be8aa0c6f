// Package sforce is a client library for the Salesforce REST API.
//
// It covers authentication, sobject metadata discovery, CRUD and composite
// batch operations, and SOQL queries with transparent cursor pagination.
//
// Two authentication strategies are provided, both yielding the same
// Session contract: the OAuth JWT-bearer grant (a certificate-signed
// assertion) and the OAuth password grant. A Client wraps an authenticated
// Authenticator and routes every call through a wrapper that, on failure,
// reauthenticates once and retries the call.
//
// Typical use:
//
//	auth, err := sforce.NewPasswordAuthenticator(sforce.PasswordCredentials{
//		Username:       "user@example.com",
//		Password:       "secret",
//		ConsumerKey:    "key",
//		ConsumerSecret: "secret",
//	})
//	if err != nil { ... }
//	if err := auth.Authenticate(ctx); err != nil { ... }
//	client, err := sforce.NewClient(auth)
//	if err != nil { ... }
//	it, err := client.Query(ctx, "select Id, Name from Account")
//	for it.Next(ctx) {
//		record := it.Record()
//		...
//	}
package sforce
