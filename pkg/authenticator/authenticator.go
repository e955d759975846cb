package authenticator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"gauth/pkg/credential"
	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

const logSubsystem = "Authenticator"

// MaxErrorBodySize bounds the response body excerpt kept in a RequestError.
const MaxErrorBodySize = 4 << 10

// Config configures an Authenticator.
type Config struct {
	// Identity is the registered application. Required.
	Identity credential.ClientIdentity

	// Scopes requested during authorization. Required.
	Scopes oauth.ScopeSet

	// Callback is the redirect target registered with the provider. Required.
	Callback oauth.CallbackEndpoint

	// Store persists the credential. Defaults to an in-memory store.
	Store *credential.Store

	// Endpoint overrides the provider endpoints. Defaults to oauth.GoogleEndpoint.
	Endpoint *oauth2.Endpoint

	// HTTPClient is used for token and API requests.
	HTTPClient *http.Client

	// DisableStateCheck omits the anti-forgery state parameter.
	DisableStateCheck bool

	// OnStoreError receives persistence failures after a renewal. Such
	// failures never block the request that triggered the renewal. Defaults
	// to a warning log.
	OnStoreError func(error)

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Authenticator runs the authorization flow and dispatches authenticated
// requests for a single credential.
type Authenticator struct {
	identity          credential.ClientIdentity
	callback          oauth.CallbackEndpoint
	client            *oauth.Client
	httpClient        *http.Client
	store             *credential.Store
	disableStateCheck bool
	onStoreError      func(error)
	now               func() time.Time

	mu        sync.RWMutex
	token     oauth.TokenState
	flowState FlowState
	attempt   *attempt

	// persistMu is held from applying a grant until its record is written,
	// so the last write always carries the latest in-memory token state.
	persistMu sync.Mutex

	renewGroup singleflight.Group
}

// New builds an authenticator and hydrates its token state from the store.
func New(ctx context.Context, cfg Config) (*Authenticator, error) {
	if cfg.Identity.ConsumerKey == "" || cfg.Identity.ConsumerSecret == "" {
		return nil, credential.ErrInvalidIdentity
	}
	if cfg.Scopes.IsZero() {
		return nil, oauth.ErrEmptyScopeSet
	}
	if cfg.Callback.IsZero() {
		return nil, errors.New("callback endpoint is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: oauth.DefaultHTTPTimeout}
	}
	store := cfg.Store
	if store == nil {
		store = credential.NewStore(credential.NewMemoryStorage(), "")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	onStoreError := cfg.OnStoreError
	if onStoreError == nil {
		onStoreError = func(err error) {
			logging.WarnErr(logSubsystem, err, "Renewed token could not be persisted; continuing with in-memory token")
		}
	}

	clientOpts := []oauth.ClientOption{oauth.WithHTTPClient(httpClient)}
	if cfg.Endpoint != nil {
		clientOpts = append(clientOpts, oauth.WithEndpoint(*cfg.Endpoint))
	}

	a := &Authenticator{
		identity:          cfg.Identity,
		callback:          cfg.Callback,
		client:            oauth.NewClient(cfg.Identity.ConsumerKey, cfg.Identity.ConsumerSecret, cfg.Callback, cfg.Scopes, clientOpts...),
		httpClient:        httpClient,
		store:             store,
		disableStateCheck: cfg.DisableStateCheck,
		onStoreError:      onStoreError,
		now:               now,
		token:             oauth.EmptyTokenState(),
		flowState:         FlowIdle,
	}
	a.hydrate(ctx)
	return a, nil
}

// hydrate loads the persisted token state. A missing or unreadable record
// leaves the empty state in place.
func (a *Authenticator) hydrate(ctx context.Context) {
	cred, ok := a.store.Read(ctx, a.identity.ConsumerKey)
	if !ok {
		logging.Debug(logSubsystem, "No stored credential for %s", a.identity.ConsumerKey)
		return
	}
	a.token = cred.Token
	logging.Debug(logSubsystem, "Hydrated credential for %s (authorized=%t, expired=%t)",
		a.identity.ConsumerKey, a.token.IsAuthorized(), a.token.IsExpiredAt(a.now()))
}

// Identity returns the client identity.
func (a *Authenticator) Identity() credential.ClientIdentity {
	return a.identity
}

// Store returns the credential store.
func (a *Authenticator) Store() *credential.Store {
	return a.store
}

// Token returns a snapshot of the current token state.
func (a *Authenticator) Token() oauth.TokenState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// IsAuthorized reports whether an access token is present. An expired token
// still counts; it is renewed on the next request.
func (a *Authenticator) IsAuthorized() bool {
	return a.Token().IsAuthorized()
}

// applyAndPersist applies grant to the in-memory token state and writes the
// resulting credential. It returns the applied state even when the write
// fails. Lock order is persistMu, then mu.
func (a *Authenticator) applyAndPersist(ctx context.Context, grant oauth.GrantResult) (oauth.TokenState, error) {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	a.mu.Lock()
	a.token.Apply(grant)
	applied := a.token
	cred := a.credentialLocked()
	a.mu.Unlock()

	return applied, a.store.Upsert(ctx, cred)
}

// credentialLocked returns the credential to persist. Callers hold a.mu.
func (a *Authenticator) credentialLocked() credential.Credential {
	return credential.Credential{ClientIdentity: a.identity, Token: a.token}
}
