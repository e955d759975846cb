package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Provider endpoints for the Google installed-application flow.
const (
	// GoogleAuthorizeURL is where the user grants consent.
	GoogleAuthorizeURL = "https://accounts.google.com/o/oauth2/auth"

	// GoogleTokenURL exchanges codes and refresh tokens for access tokens.
	GoogleTokenURL = "https://www.googleapis.com/oauth2/v4/token"

	// ResponseTypeCode is the only response type gauth requests.
	ResponseTypeCode = "code"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// GoogleEndpoint is the default provider endpoint. Client credentials are
// sent in the request body, as installed applications are expected to do.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   GoogleAuthorizeURL,
	TokenURL:  GoogleTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// ErrEmptyAccessToken is returned when the token endpoint answers 200 without an access token.
var ErrEmptyAccessToken = errors.New("token response has no access token")

// Client handles the OAuth 2.0 protocol operations against the provider:
// authorize URL construction, code exchange and refresh.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for token endpoint requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithEndpoint overrides the provider endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) ClientOption {
	return func(c *Client) {
		c.config.Endpoint = endpoint
	}
}

// NewClient creates a new OAuth client for one registered application.
func NewClient(clientID, clientSecret string, callback CallbackEndpoint, scopes ScopeSet, opts ...ClientOption) *Client {
	c := &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     GoogleEndpoint,
			RedirectURL:  callback.String(),
			Scopes:       scopes.Strings(),
		},
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the provider endpoint in use.
func (c *Client) Endpoint() oauth2.Endpoint {
	return c.config.Endpoint
}

// HTTPClient returns the underlying HTTP client for reuse.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// AuthorizationURL builds the URL the user opens to grant consent.
// An empty state omits the state parameter entirely.
// access_type=offline asks the provider for a refresh token.
func (c *Client) AuthorizationURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (GrantResult, error) {
	token, err := c.config.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return GrantResult{}, fmt.Errorf("code exchange failed: %w", providerErrorFrom(err))
	}
	if token.AccessToken == "" {
		return GrantResult{}, ErrEmptyAccessToken
	}
	return GrantResultFromOAuth2(token), nil
}

// RefreshToken obtains a new access token using a refresh token.
// When the provider omits the refresh token in its answer, the one sent is kept.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (GrantResult, error) {
	// An expired token without access token forces the token source to refresh.
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: FarPast}
	token, err := c.config.TokenSource(c.withHTTPClient(ctx), stale).Token()
	if err != nil {
		return GrantResult{}, fmt.Errorf("token refresh failed: %w", providerErrorFrom(err))
	}
	if token.AccessToken == "" {
		return GrantResult{}, ErrEmptyAccessToken
	}

	result := GrantResultFromOAuth2(token)
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return result, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
