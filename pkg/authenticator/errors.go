package authenticator

import (
	"errors"
	"fmt"

	"gauth/pkg/oauth"
	textutil "gauth/pkg/strings"
)

var (
	// ErrNotAuthorized is returned when a request is made without an access token.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNoRefreshToken is returned when an expired token cannot be renewed.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrAuthorizationInProgress is returned when Authorize is called while
	// another attempt is waiting for the user or exchanging the code.
	ErrAuthorizationInProgress = errors.New("authorization already in progress")

	// ErrNoAuthorizationPending is returned by HandleRedirect when no attempt
	// is waiting for a redirect.
	ErrNoAuthorizationPending = errors.New("no authorization pending")

	// ErrRedirectAlreadyReceived is returned by HandleRedirect when the
	// pending attempt already has a redirect queued.
	ErrRedirectAlreadyReceived = errors.New("redirect already received for this authorization")

	// ErrRedirectMismatch is returned for redirects that do not target the
	// configured callback endpoint.
	ErrRedirectMismatch = errors.New("redirect does not match callback endpoint")

	// ErrStateMismatch is returned when the anti-forgery state of a redirect
	// differs from the one sent with the authorize request.
	ErrStateMismatch = errors.New("authorization state mismatch")

	// ErrUserCancelled is returned when the host cancels the attempt.
	ErrUserCancelled = errors.New("authorization cancelled by user")

	// ErrMissingCode is returned for redirects that carry neither a code nor an error.
	ErrMissingCode = errors.New("redirect carries no authorization code")
)

// AuthorizationError reports a failed authorization attempt.
type AuthorizationError struct {
	AttemptID string
	Err       error
}

func (e *AuthorizationError) Error() string {
	if e.AttemptID == "" {
		return fmt.Sprintf("authorization failed: %v", e.Err)
	}
	return fmt.Sprintf("authorization %s failed: %v", e.AttemptID, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// RenewalError reports a failed refresh-token exchange.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("token renewal failed: %v", e.Err)
}

func (e *RenewalError) Unwrap() error {
	return e.Err
}

// RequestError reports a failed authenticated request. StatusCode and Body
// are set when the server answered with an error status; Body holds at most
// MaxErrorBodySize bytes.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode,
				textutil.Excerpt(e.Body, textutil.DefaultExcerptLen))
		}
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsAuthorizationRequired reports whether err means the user has to run the
// authorization flow (again) before requests can succeed.
func IsAuthorizationRequired(err error) bool {
	if errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrNoRefreshToken) {
		return true
	}
	var renewalErr *RenewalError
	var providerErr *oauth.ProviderError
	return errors.As(err, &renewalErr) && errors.As(err, &providerErr) && providerErr.IsInvalidGrant()
}
