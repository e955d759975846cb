package authenticator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"gauth/pkg/credential"
	"gauth/pkg/oauth"
)

const (
	testConsumerKey    = "client-id"
	testConsumerSecret = "client-secret"
	testRedirectBase   = "com.example.app:/urn:ietf:wg:oauth:2.0:oob"
)

// fakeProvider is an httptest token endpoint plus a protected API.
type fakeProvider struct {
	server *httptest.Server

	mu           sync.Mutex
	calls        []string
	apiAuth      []string
	exchangeResp func(w http.ResponseWriter, r *http.Request)
	refreshResp  func(w http.ResponseWriter, r *http.Request)
	apiResp      func(w http.ResponseWriter, r *http.Request)
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		exchangeResp: tokenResponse("tok1", "ref1", 3600),
		refreshResp:  tokenResponse("tok2", "", 3600),
		apiResp: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		grantType := r.PostForm.Get("grant_type")
		p.record(grantType, "")

		p.mu.Lock()
		exchange, refresh := p.exchangeResp, p.refreshResp
		p.mu.Unlock()

		switch grantType {
		case "authorization_code":
			exchange(w, r)
		case "refresh_token":
			refresh(w, r)
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		p.record("api", r.Header.Get("Authorization"))
		p.mu.Lock()
		api := p.apiResp
		p.mu.Unlock()
		api(w, r)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) record(call, auth string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if call == "api" {
		p.apiAuth = append(p.apiAuth, auth)
	}
}

func (p *fakeProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) count(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakeProvider) APIAuth() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.apiAuth...)
}

func (p *fakeProvider) setRefresh(h func(w http.ResponseWriter, r *http.Request)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshResp = h
}

func (p *fakeProvider) setExchange(h func(w http.ResponseWriter, r *http.Request)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeResp = h
}

func (p *fakeProvider) setAPI(h func(w http.ResponseWriter, r *http.Request)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiResp = h
}

func (p *fakeProvider) APIURL() string {
	return p.server.URL + "/api"
}

func (p *fakeProvider) Endpoint() *oauth2.Endpoint {
	return &oauth2.Endpoint{
		AuthURL:   p.server.URL + "/auth",
		TokenURL:  p.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func tokenResponse(access, refresh string, expiresIn int) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"access_token": access, "token_type": "Bearer"}
		if refresh != "" {
			body["refresh_token"] = refresh
		}
		if expiresIn > 0 {
			body["expires_in"] = expiresIn
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func errorResponse(status int, code string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{"error": code, "error_description": "rejected by test"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// flakyStorage is a MemoryStorage whose writes can be made to fail.
type flakyStorage struct {
	*credential.MemoryStorage

	mu        sync.Mutex
	failWrite error
}

func (s *flakyStorage) setFailWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = err
}

func (s *flakyStorage) writeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failWrite
}

func (s *flakyStorage) Create(ctx context.Context, namespace, account string, record credential.Record) error {
	if err := s.writeErr(); err != nil {
		return err
	}
	return s.MemoryStorage.Create(ctx, namespace, account, record)
}

func (s *flakyStorage) Update(ctx context.Context, namespace, account string, record credential.Record) error {
	if err := s.writeErr(); err != nil {
		return err
	}
	return s.MemoryStorage.Update(ctx, namespace, account, record)
}

// gatedStorage is a MemoryStorage whose first write blocks until release
// is called.
type gatedStorage struct {
	*credential.MemoryStorage

	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedStorage() *gatedStorage {
	return &gatedStorage{
		MemoryStorage: credential.NewMemoryStorage(),
		entered:       make(chan struct{}),
		gate:          make(chan struct{}),
	}
}

func (s *gatedStorage) wait() {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.gate
	}
}

func (s *gatedStorage) release() { close(s.gate) }

func (s *gatedStorage) Create(ctx context.Context, namespace, account string, record credential.Record) error {
	s.wait()
	return s.MemoryStorage.Create(ctx, namespace, account, record)
}

func (s *gatedStorage) Update(ctx context.Context, namespace, account string, record credential.Record) error {
	s.wait()
	return s.MemoryStorage.Update(ctx, namespace, account, record)
}

var errKeychainLocked = errors.New("keychain locked")

type testEnv struct {
	provider *fakeProvider
	storage  *flakyStorage
	store    *credential.Store
	callback oauth.CallbackEndpoint
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	callback, err := oauth.NewCallbackEndpoint("com.example.app")
	require.NoError(t, err)

	storage := &flakyStorage{MemoryStorage: credential.NewMemoryStorage()}
	return &testEnv{
		provider: newFakeProvider(t),
		storage:  storage,
		store:    credential.NewStore(storage, "test.namespace"),
		callback: callback,
	}
}

func (e *testEnv) config() Config {
	scopes, _ := oauth.NewScopeSet(oauth.ScopeAnalyticsReadonly)
	return Config{
		Identity: credential.ClientIdentity{ConsumerKey: testConsumerKey, ConsumerSecret: testConsumerSecret},
		Scopes:   scopes,
		Callback: e.callback,
		Store:    e.store,
		Endpoint: e.provider.Endpoint(),
	}
}

func (e *testEnv) newAuthenticator(t *testing.T, mutate ...func(*Config)) *Authenticator {
	t.Helper()
	cfg := e.config()
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return a
}

// seed stores a credential as if a previous process had authorized.
func (e *testEnv) seed(t *testing.T, token oauth.TokenState) {
	t.Helper()
	require.NoError(t, e.store.Upsert(context.Background(), credential.Credential{
		ClientIdentity: credential.ClientIdentity{ConsumerKey: testConsumerKey, ConsumerSecret: testConsumerSecret},
		Token:          token,
	}))
}

// redirectingHost answers the authorize URL with a redirect built from it.
func redirectingHost(a *Authenticator, query func(state string) string) UIHost {
	return UIHostFunc(func(ctx context.Context, authorizeURL string) error {
		u, err := url.Parse(authorizeURL)
		if err != nil {
			return err
		}
		return a.HandleRedirect(testRedirectBase + "?" + query(u.Query().Get("state")))
	})
}

func grantingHost(a *Authenticator) UIHost {
	return redirectingHost(a, func(state string) string {
		return url.Values{"code": {"the-code"}, "state": {state}}.Encode()
	})
}

// waitForState polls until the flow reaches want.
func waitForState(t *testing.T, a *Authenticator, want FlowState) {
	t.Helper()
	require.Eventually(t, func() bool { return a.State() == want }, 2*time.Second, 5*time.Millisecond)
}
