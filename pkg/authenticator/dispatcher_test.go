package authenticator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauth/pkg/credential"
	"gauth/pkg/oauth"
)

func expiredToken() oauth.TokenState {
	return oauth.TokenState{AccessToken: "stale", RefreshToken: "ref1", ExpiresAt: time.Now().Add(-time.Second)}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestDo_NotAuthorized(t *testing.T) {
	env := newTestEnv(t)
	a := env.newAuthenticator(t)

	_, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.MethodGet, reqErr.Method)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.True(t, IsAuthorizationRequired(err))
	assert.Empty(t, env.provider.Calls())
}

func TestDo_ValidTokenSkipsRenewal(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "fresh", RefreshToken: "ref1", ExpiresAt: time.Now().Add(time.Hour)})
	a := env.newAuthenticator(t)

	resp, err := a.Get(context.Background(), env.provider.APIURL(), url.Values{"ids": {"ga:1"}}, http.Header{"X-Test": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, readBody(t, resp))

	assert.Equal(t, []string{"api"}, env.provider.Calls())
	assert.Equal(t, []string{"Bearer fresh"}, env.provider.APIAuth())
}

// Scenario C: an expired token is renewed exactly once before the request.
func TestDo_RenewsExpiredTokenFirst(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, expiredToken())
	a := env.newAuthenticator(t)

	resp, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"refresh_token", "api"}, env.provider.Calls())
	assert.Equal(t, []string{"Bearer tok2"}, env.provider.APIAuth())

	// The provider omitted the refresh token, so the old one is kept.
	assert.Equal(t, "tok2", a.Token().AccessToken)
	assert.Equal(t, "ref1", a.Token().RefreshToken)
	assert.False(t, a.Token().IsExpired())

	stored, ok := env.store.Read(context.Background(), testConsumerKey)
	require.True(t, ok)
	assert.Equal(t, "tok2", stored.Token.AccessToken)
	assert.Equal(t, "ref1", stored.Token.RefreshToken)
}

// Scenario D: a failed renewal aborts the request.
func TestDo_RenewalFailureAbortsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, expiredToken())
	env.provider.setRefresh(errorResponse(http.StatusBadRequest, "invalid_grant"))
	a := env.newAuthenticator(t)

	_, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	var renewalErr *RenewalError
	require.ErrorAs(t, err, &renewalErr)
	var providerErr *oauth.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.True(t, providerErr.IsInvalidGrant())
	assert.True(t, IsAuthorizationRequired(err))

	assert.Equal(t, 0, env.provider.count("api"))
	assert.Equal(t, "stale", a.Token().AccessToken)
}

func TestDo_NoRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Minute)})
	a := env.newAuthenticator(t)

	_, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Empty(t, env.provider.Calls())
}

// Scenario F: concurrent callers share one renewal.
func TestDo_ConcurrentRenewalIsSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, expiredToken())
	env.provider.setRefresh(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		tokenResponse("tok2", "ref2", 3600)(w, r)
	})
	a := env.newAuthenticator(t)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]oauth.TokenState, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
			if err == nil {
				resp.Body.Close()
			}
			errs[i] = err
			tokens[i] = a.Token()
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0], tokens[i])
	}
	assert.Equal(t, 1, env.provider.count("refresh_token"))
	assert.Equal(t, callers, env.provider.count("api"))
	for _, auth := range env.provider.APIAuth() {
		assert.Equal(t, "Bearer tok2", auth)
	}
	assert.Equal(t, "ref2", a.Token().RefreshToken)
}

func TestDo_CancelledCallerDoesNotFailSharedRenewal(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, expiredToken())
	env.provider.setRefresh(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		tokenResponse("tok2", "ref2", 3600)(w, r)
	})
	a := env.newAuthenticator(t)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		resp, err := a.Get(leaderCtx, env.provider.APIURL(), nil, nil)
		if err == nil {
			resp.Body.Close()
		}
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return env.provider.count("refresh_token") == 1 }, 2*time.Second, 5*time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		resp, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
		if err == nil {
			resp.Body.Close()
		}
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	err := <-leaderErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var renewalErr *RenewalError
	assert.ErrorAs(t, err, &renewalErr)

	require.NoError(t, <-followerErr)
	assert.Equal(t, 1, env.provider.count("refresh_token"))
	assert.Equal(t, []string{"Bearer tok2"}, env.provider.APIAuth())

	stored, ok := env.store.Read(context.Background(), testConsumerKey)
	require.True(t, ok)
	assert.Equal(t, "tok2", stored.Token.AccessToken)
}

func TestDo_RenewalPersistFailureDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, expiredToken())
	env.storage.setFailWrite(errKeychainLocked)

	var reported []error
	a := env.newAuthenticator(t, func(c *Config) {
		c.OnStoreError = func(err error) { reported = append(reported, err) }
	})

	resp, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, reported, 1)
	var storeErr *credential.StoreError
	assert.ErrorAs(t, reported[0], &storeErr)
	assert.Equal(t, []string{"Bearer tok2"}, env.provider.APIAuth())

	stored, ok := env.store.Read(context.Background(), testConsumerKey)
	require.True(t, ok)
	assert.Equal(t, "stale", stored.Token.AccessToken)
}

func TestDo_ErrorStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)})
	env.provider.setAPI(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
	})
	a := env.newAuthenticator(t)

	_, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.StatusCode)
	assert.Equal(t, "insufficient permissions", reqErr.Body)
	assert.Contains(t, reqErr.Error(), "403")
	assert.Contains(t, reqErr.Error(), "insufficient permissions")
}

func TestRequestError_ErrorKeepsBodyOnOneLine(t *testing.T) {
	err := &RequestError{
		Method:     http.MethodGet,
		URL:        "https://example.com/api",
		StatusCode: http.StatusBadRequest,
		Body:       "{\n  \"error\": \"bad\"\n}" + strings.Repeat("x", 500),
	}

	msg := err.Error()
	assert.NotContains(t, msg, "\n")
	assert.Contains(t, msg, `{ "error": "bad" }`)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestDo_RequestShapes(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)})

	type seenRequest struct {
		method, query, contentType, form, header string
	}
	seen := make(chan seenRequest, 1)
	env.provider.setAPI(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		seen <- seenRequest{
			method:      r.Method,
			query:       r.URL.RawQuery,
			contentType: r.Header.Get("Content-Type"),
			form:        r.PostForm.Encode(),
			header:      r.Header.Get("X-Trace"),
		}
		w.WriteHeader(http.StatusNoContent)
	})
	a := env.newAuthenticator(t)
	params := url.Values{"metrics": {"ga:sessions"}}
	headers := http.Header{"X-Trace": {"abc"}}

	t.Run("get puts params in query", func(t *testing.T) {
		resp, err := a.Get(context.Background(), env.provider.APIURL()+"?a=1", params, headers)
		require.NoError(t, err)
		resp.Body.Close()

		got := <-seen
		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "a=1&metrics=ga%3Asessions", got.query)
		assert.Equal(t, "abc", got.header)
	})

	t.Run("post sends a form body", func(t *testing.T) {
		resp, err := a.Post(context.Background(), env.provider.APIURL(), params, headers)
		require.NoError(t, err)
		resp.Body.Close()

		got := <-seen
		assert.Equal(t, http.MethodPost, got.method)
		assert.Empty(t, got.query)
		assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		assert.Equal(t, "metrics=ga%3Asessions", got.form)
	})

	t.Run("lowercase method", func(t *testing.T) {
		resp, err := a.Do(context.Background(), "delete", env.provider.APIURL(), nil, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.MethodDelete, (<-seen).method)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := a.Get(context.Background(), "not a url", nil, nil)
		var reqErr *RequestError
		assert.ErrorAs(t, err, &reqErr)
	})
}

func TestRenew_Forced(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "fresh", RefreshToken: "ref1", ExpiresAt: time.Now().Add(time.Hour)})
	a := env.newAuthenticator(t)

	token, err := a.Renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok2", token.AccessToken)
	assert.Equal(t, 1, env.provider.count("refresh_token"))
}

func TestDo_TransportFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, oauth.TokenState{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)})
	a := env.newAuthenticator(t)
	env.provider.server.Close()

	_, err := a.Get(context.Background(), env.provider.APIURL(), nil, nil)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, reqErr.StatusCode)
	assert.False(t, errors.Is(err, ErrNotAuthorized))
}
