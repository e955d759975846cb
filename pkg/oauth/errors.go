package oauth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ProviderError is an error reported by the provider, either on the redirect
// (user denied consent) or by the token endpoint (invalid_grant and friends).
type ProviderError struct {
	// Code is the OAuth error code, e.g. "access_denied" or "invalid_grant".
	Code string

	// Description is the provider's human-readable description, if any.
	Description string

	// StatusCode is the token endpoint HTTP status, zero for redirect errors.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := "provider error"
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " - " + e.Description
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsInvalidGrant reports whether the provider rejected the code or refresh
// token itself, meaning the user has to authorize again.
func (e *ProviderError) IsInvalidGrant() bool {
	return e.Code == "invalid_grant"
}

// providerErrorFrom converts a golang.org/x/oauth2 token endpoint failure
// into a *ProviderError. Other errors are returned unchanged.
func providerErrorFrom(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}
	pe := &ProviderError{
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
		Err:         err,
	}
	if re.Response != nil {
		pe.StatusCode = re.Response.StatusCode
	}
	return pe
}
