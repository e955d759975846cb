// Package oauth holds the provider-facing OAuth 2.0 pieces of gauth.
//
// # Core Components
//
//   - TokenState: access token, refresh token and expiry, with the expiry predicate
//   - GrantResult: the token fields returned by a code exchange or a renewal
//   - Scope / ScopeSet: the closed set of scopes the provider accepts
//   - CallbackEndpoint: the redirect URI that concludes the authorization step
//   - Client: authorize URL construction, code exchange and refresh, on top of
//     golang.org/x/oauth2
//
// # Usage
//
//	scopes, err := oauth.NewScopeSet(oauth.ScopeAnalyticsReadonly)
//	callback, err := oauth.NewCallbackEndpoint("com.example.reader")
//
//	client := oauth.NewClient(consumerKey, consumerSecret, callback, scopes)
//	authURL := client.AuthorizationURL(state)
//	grant, err := client.ExchangeCode(ctx, code)
//
// This package performs no persistence; see pkg/credential.
package oauth
