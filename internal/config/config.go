package config

import (
	"golang.org/x/oauth2"

	"gauth/pkg/credential"
	"gauth/pkg/oauth"
)

// Identity returns the client identity.
func (c Config) Identity() (credential.ClientIdentity, error) {
	return credential.NewClientIdentity(c.ClientID, c.ClientSecret)
}

// ScopeSet parses the configured scopes.
func (c Config) ScopeSet() (oauth.ScopeSet, error) {
	return oauth.ParseScopeSet(c.Scopes)
}

// CallbackEndpoint resolves the redirect target: an explicit redirect_uri,
// the loopback listener in loopback mode, or the out-of-band URI derived
// from app_id.
func (c Config) CallbackEndpoint() (oauth.CallbackEndpoint, error) {
	switch {
	case c.RedirectURI != "":
		return oauth.ParseCallbackEndpoint(c.RedirectURI)
	case c.Host.Mode == HostModeLoopback:
		return oauth.ParseCallbackEndpoint("http://" + c.Host.ListenAddr + c.Host.CallbackPath)
	default:
		return oauth.NewCallbackEndpoint(c.AppID)
	}
}

// OAuthEndpoint returns the provider endpoints, or nil for the defaults.
func (c Config) OAuthEndpoint() *oauth2.Endpoint {
	if c.Endpoint.AuthURL == "" && c.Endpoint.TokenURL == "" {
		return nil
	}
	endpoint := oauth.GoogleEndpoint
	if c.Endpoint.AuthURL != "" {
		endpoint.AuthURL = c.Endpoint.AuthURL
	}
	if c.Endpoint.TokenURL != "" {
		endpoint.TokenURL = c.Endpoint.TokenURL
	}
	return &endpoint
}
