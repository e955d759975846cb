package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// OutOfBandPath is the path component of an installed-application redirect URI.
const OutOfBandPath = "/urn:ietf:wg:oauth:2.0:oob"

// ErrInvalidCallback is returned for application identifiers or redirect
// overrides that cannot form a redirect URI.
var ErrInvalidCallback = errors.New("invalid callback endpoint")

// CallbackEndpoint is the redirect URI that concludes the authorization step.
// It is only ever matched against redirects, never dereferenced.
type CallbackEndpoint struct {
	raw    string
	parsed *url.URL
}

// NewCallbackEndpoint derives the callback endpoint from the application's
// own identifier: "{appID}:/urn:ietf:wg:oauth:2.0:oob".
func NewCallbackEndpoint(appID string) (CallbackEndpoint, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return CallbackEndpoint{}, fmt.Errorf("%w: application identifier is empty", ErrInvalidCallback)
	}
	return ParseCallbackEndpoint(appID + ":" + OutOfBandPath)
}

// ParseCallbackEndpoint uses an explicit redirect URI, e.g. a loopback
// address served by a local callback listener.
func ParseCallbackEndpoint(raw string) (CallbackEndpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return CallbackEndpoint{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if u.Scheme == "" {
		return CallbackEndpoint{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidCallback, raw)
	}
	if u.Opaque != "" {
		return CallbackEndpoint{}, fmt.Errorf("%w: %q has no path", ErrInvalidCallback, raw)
	}
	return CallbackEndpoint{raw: raw, parsed: u}, nil
}

// String returns the redirect URI sent to the provider.
func (e CallbackEndpoint) String() string {
	return e.raw
}

// IsZero reports whether the endpoint was never initialized.
func (e CallbackEndpoint) IsZero() bool {
	return e.parsed == nil
}

// Matches reports whether rawURL is a redirect to this endpoint.
// Scheme and host compare case-insensitively; the path must be identical.
// Query and fragment are ignored.
func (e CallbackEndpoint) Matches(rawURL string) bool {
	if e.parsed == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, e.parsed.Scheme) &&
		strings.EqualFold(u.Host, e.parsed.Host) &&
		u.Path == e.parsed.Path
}

// RedirectResult is what the provider appended to the redirect URI.
type RedirectResult struct {
	// Code is the authorization code.
	Code string

	// State is the anti-forgery value echoed back by the provider.
	State string

	// Error is the provider error code if the user or provider denied the grant.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the redirect reports a provider error.
func (r *RedirectResult) IsError() bool {
	return r.Error != ""
}

// ProviderError converts an error redirect into a *ProviderError.
func (r *RedirectResult) ProviderError() *ProviderError {
	if !r.IsError() {
		return nil
	}
	return &ProviderError{Code: r.Error, Description: r.ErrorDescription}
}

// ParseRedirect extracts the authorization response from a redirect URL.
// It fails if the URL does not match the endpoint.
func (e CallbackEndpoint) ParseRedirect(rawURL string) (*RedirectResult, error) {
	if !e.Matches(rawURL) {
		return nil, fmt.Errorf("%w: redirect does not match %s", ErrInvalidCallback, e.raw)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	query := u.Query()
	// Some providers deliver the response in the fragment instead of the query.
	if len(query) == 0 && u.Fragment != "" {
		if fragment, ferr := url.ParseQuery(u.Fragment); ferr == nil {
			query = fragment
		}
	}

	return &RedirectResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}, nil
}
