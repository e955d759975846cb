// Package authenticator drives the OAuth 2.0 installed-application flow and
// issues authenticated requests.
//
// An Authenticator owns one ClientIdentity, one ScopeSet and the current
// oauth.TokenState. At construction it hydrates the token state from a
// credential.Store. Authorize runs the authorization-code flow through a
// UIHost; every grant and renewal is written back to the store.
//
// # Authorization flow
//
//	Idle -> AwaitingUserGrant -> Exchanging -> Authorized
//	                  \               \
//	                   +-> Failed      +-> Failed
//
// Authorize blocks until the attempt finishes. The host shows the authorize
// URL and reports the terminal redirect with HandleRedirect, or aborts with
// CancelAuthorization. Only one attempt runs at a time.
//
// # Requests
//
// Do (and Get/Post) attach the bearer token. An expired token is renewed
// first with the refresh token; concurrent callers share a single renewal.
// A request is never sent with a token known to be expired.
//
//	auth, err := authenticator.New(ctx, authenticator.Config{...})
//	if !auth.IsAuthorized() {
//		err = auth.Authorize(ctx, host)
//	}
//	resp, err := auth.Get(ctx, "https://www.googleapis.com/analytics/v3/management/accounts", nil, nil)
package authenticator
