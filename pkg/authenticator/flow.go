package authenticator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

// FlowState is the state of the authorization flow.
type FlowState int

const (
	// FlowIdle means no attempt has run since construction.
	FlowIdle FlowState = iota

	// FlowAwaitingUserGrant means the authorize URL was handed to the host
	// and the engine waits for the redirect.
	FlowAwaitingUserGrant

	// FlowExchanging means the authorization code is being exchanged.
	FlowExchanging

	// FlowAuthorized means the last attempt obtained and persisted a token.
	FlowAuthorized

	// FlowFailed means the last attempt failed.
	FlowFailed
)

// String returns the string representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowAwaitingUserGrant:
		return "awaiting_user_grant"
	case FlowExchanging:
		return "exchanging"
	case FlowAuthorized:
		return "authorized"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether an attempt is in flight.
func (s FlowState) active() bool {
	return s == FlowAwaitingUserGrant || s == FlowExchanging
}

// UIHost presents the authorize URL to the user. Open must not block until
// the redirect arrives; the host reports the redirect with HandleRedirect,
// which may be called from inside Open.
type UIHost interface {
	Open(ctx context.Context, authorizeURL string) error
}

// UIHostFunc adapts a function to UIHost.
type UIHostFunc func(ctx context.Context, authorizeURL string) error

// Open calls f.
func (f UIHostFunc) Open(ctx context.Context, authorizeURL string) error {
	return f(ctx, authorizeURL)
}

type attempt struct {
	id           string
	state        string
	authorizeURL string

	redirects  chan string
	cancelled  chan struct{}
	cancelOnce sync.Once
}

func (at *attempt) cancel() {
	at.cancelOnce.Do(func() { close(at.cancelled) })
}

// State returns the current flow state.
func (a *Authenticator) State() FlowState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.flowState
}

// AuthorizationURL returns the authorize URL of the pending attempt, or an
// empty string when none is pending.
func (a *Authenticator) AuthorizationURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.attempt == nil || a.flowState != FlowAwaitingUserGrant {
		return ""
	}
	return a.attempt.authorizeURL
}

// Authorize runs one authorization attempt through host. It returns nil once
// the granted token has been applied and persisted, or an
// *AuthorizationError. Calling it while already authorized starts a new
// grant. A second call while an attempt is in flight fails with
// ErrAuthorizationInProgress.
func (a *Authenticator) Authorize(ctx context.Context, host UIHost) error {
	at, err := a.beginAttempt()
	if err != nil {
		return &AuthorizationError{Err: err}
	}
	logging.Info(logSubsystem, "Starting authorization attempt %s for %s", at.id, a.identity.ConsumerKey)

	if err := host.Open(ctx, at.authorizeURL); err != nil {
		return a.failAttempt(at, fmt.Errorf("failed to present authorization page: %w", err))
	}

	var rawURL string
	select {
	case rawURL = <-at.redirects:
	case <-at.cancelled:
		return a.failAttempt(at, ErrUserCancelled)
	case <-ctx.Done():
		return a.failAttempt(at, ctx.Err())
	}

	code, err := a.codeFromRedirect(at, rawURL)
	if err != nil {
		return a.failAttempt(at, err)
	}

	a.setFlowState(at, FlowExchanging)
	logging.Debug(logSubsystem, "Exchanging authorization code for attempt %s", at.id)

	grant, err := a.client.ExchangeCode(ctx, code)
	if err != nil {
		return a.failAttempt(at, fmt.Errorf("code exchange failed: %w", err))
	}

	// The token is live from here on even if persisting it fails.
	if _, err := a.applyAndPersist(ctx, grant); err != nil {
		return a.failAttempt(at, err)
	}

	a.finishAttempt(at, FlowAuthorized)
	logging.Info(logSubsystem, "Authorization attempt %s succeeded for %s", at.id, a.identity.ConsumerKey)
	return nil
}

func (a *Authenticator) beginAttempt() (*attempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.flowState.active() {
		return nil, ErrAuthorizationInProgress
	}

	at := &attempt{
		id:        uuid.NewString(),
		redirects: make(chan string, 1),
		cancelled: make(chan struct{}),
	}
	if !a.disableStateCheck {
		state, err := oauth.GenerateState()
		if err != nil {
			return nil, err
		}
		at.state = state
	}
	at.authorizeURL = a.client.AuthorizationURL(at.state)

	a.attempt = at
	a.flowState = FlowAwaitingUserGrant
	return at, nil
}

func (a *Authenticator) codeFromRedirect(at *attempt, rawURL string) (string, error) {
	result, err := a.callback.ParseRedirect(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedirectMismatch, err)
	}
	if result.IsError() {
		return "", result.ProviderError()
	}
	if !a.disableStateCheck && result.State != at.state {
		return "", ErrStateMismatch
	}
	if result.Code == "" {
		return "", ErrMissingCode
	}
	return result.Code, nil
}

func (a *Authenticator) setFlowState(at *attempt, state FlowState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempt == at {
		a.flowState = state
	}
}

func (a *Authenticator) finishAttempt(at *attempt, state FlowState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempt == at {
		a.flowState = state
		a.attempt = nil
	}
}

func (a *Authenticator) failAttempt(at *attempt, err error) error {
	a.finishAttempt(at, FlowFailed)
	if errors.Is(err, ErrUserCancelled) {
		logging.Info(logSubsystem, "Authorization attempt %s cancelled", at.id)
	} else {
		logging.WarnErr(logSubsystem, err, "Authorization attempt %s failed", at.id)
	}
	return &AuthorizationError{AttemptID: at.id, Err: err}
}

// HandleRedirect delivers the terminal redirect of the pending attempt. It
// does not wait for the exchange; Authorize reports the outcome.
func (a *Authenticator) HandleRedirect(rawURL string) error {
	a.mu.RLock()
	at := a.attempt
	state := a.flowState
	a.mu.RUnlock()

	if at == nil || state != FlowAwaitingUserGrant {
		return ErrNoAuthorizationPending
	}
	if !a.callback.Matches(rawURL) {
		logging.Debug(logSubsystem, "Ignoring redirect that does not match the callback endpoint")
		return ErrRedirectMismatch
	}

	select {
	case at.redirects <- rawURL:
		return nil
	default:
		return ErrRedirectAlreadyReceived
	}
}

// CancelAuthorization aborts the pending attempt with ErrUserCancelled. It
// is a no-op when nothing is pending.
func (a *Authenticator) CancelAuthorization() {
	a.mu.RLock()
	at := a.attempt
	a.mu.RUnlock()

	if at != nil {
		at.cancel()
	}
}
