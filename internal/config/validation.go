package config

import (
	"fmt"
	"strings"

	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// Validate checks the configuration. Secrets are never echoed back in errors.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("client_id", "is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		errs.Add("client_secret", "is required")
	}

	if _, err := oauth.ParseScopeSet(c.Scopes); err != nil {
		errs.Add("scopes", err.Error(), c.Scopes)
	}

	if _, err := c.CallbackEndpoint(); err != nil {
		errs.Add("redirect_uri", err.Error(), c.RedirectURI)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("log_level", err.Error(), c.LogLevel)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendKubernetes:
	case BackendFile, BackendSQLite:
		if c.Storage.Passphrase == "" {
			errs.Add("storage.passphrase", fmt.Sprintf("is required for the %s backend", c.Storage.Backend))
		}
	default:
		errs.Add("storage.backend", fmt.Sprintf("must be one of %s, %s, %s, %s",
			BackendMemory, BackendFile, BackendSQLite, BackendKubernetes), c.Storage.Backend)
	}

	switch c.Host.Mode {
	case HostModeBrowser, HostModeOOB, HostModeLoopback:
	default:
		errs.Add("host.mode", fmt.Sprintf("must be one of %s, %s, %s",
			HostModeBrowser, HostModeOOB, HostModeLoopback), c.Host.Mode)
	}
	if c.Host.Timeout <= 0 {
		errs.Add("host.timeout", "must be positive", c.Host.Timeout)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
