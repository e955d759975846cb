package authenticator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gauth/pkg/logging"
	"gauth/pkg/oauth"
)

// Get issues an authenticated GET with params in the query string.
func (a *Authenticator) Get(ctx context.Context, urlString string, params url.Values, headers http.Header) (*http.Response, error) {
	return a.Do(ctx, http.MethodGet, urlString, params, headers)
}

// Post issues an authenticated POST with params as a form body.
func (a *Authenticator) Post(ctx context.Context, urlString string, params url.Values, headers http.Header) (*http.Response, error) {
	return a.Do(ctx, http.MethodPost, urlString, params, headers)
}

// Do issues an authenticated request. An expired token is renewed first; if
// renewal fails the request is not sent. Responses with a status of 400 or
// above are returned as a *RequestError with the body closed. The caller
// closes the body of a successful response.
func (a *Authenticator) Do(ctx context.Context, method, urlString string, params url.Values, headers http.Header) (*http.Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	reqErr := func(err error) *RequestError {
		return &RequestError{Method: method, URL: urlString, Err: err}
	}

	token, err := a.validToken(ctx)
	if err != nil {
		return nil, reqErr(err)
	}

	req, err := newRequest(ctx, method, urlString, params)
	if err != nil {
		return nil, reqErr(err)
	}
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	token.ToOAuth2Token().SetAuthHeader(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, reqErr(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		logging.Debug(logSubsystem, "%s %s returned status %d", method, req.URL.Redacted(), resp.StatusCode)
		return nil, &RequestError{
			Method:     method,
			URL:        urlString,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return resp, nil
}

func newRequest(ctx context.Context, method, urlString string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid request URL %q: scheme and host are required", urlString)
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		if len(params) > 0 {
			q := u.Query()
			for k, vs := range params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
		}
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	default:
		req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(params.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
}

// validToken returns a token that is not expired, renewing it when needed.
func (a *Authenticator) validToken(ctx context.Context) (oauth.TokenState, error) {
	token := a.Token()
	if !token.IsAuthorized() {
		return token, ErrNotAuthorized
	}
	if !token.IsExpiredAt(a.now()) {
		return token, nil
	}
	logging.Debug(logSubsystem, "Access token for %s expired at %s, renewing", a.identity.ConsumerKey, token.ExpiresAt)
	return a.renew(ctx, false)
}

// Renew exchanges the refresh token for a new access token regardless of
// the current expiry and persists the result. Persistence failures go to
// the OnStoreError handler.
func (a *Authenticator) Renew(ctx context.Context) (oauth.TokenState, error) {
	return a.renew(ctx, true)
}

// renewTimeout bounds a shared renewal. The renewal does not inherit the
// cancellation of the caller that started it.
const renewTimeout = 30 * time.Second

// renew runs at most one refresh exchange per credential at a time; callers
// arriving while one is in flight share its outcome. A caller whose context
// ends stops waiting without affecting the others.
func (a *Authenticator) renew(ctx context.Context, force bool) (oauth.TokenState, error) {
	results := a.renewGroup.DoChan(a.identity.ConsumerKey, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renewTimeout)
		defer cancel()

		current := a.Token()
		// Another caller may have renewed between our expiry check and here.
		if !force && current.IsAuthorized() && !current.IsExpiredAt(a.now()) {
			return current, nil
		}
		if !current.HasRefreshToken() {
			return nil, &RenewalError{Err: ErrNoRefreshToken}
		}

		grant, err := a.client.RefreshToken(flightCtx, current.RefreshToken)
		if err != nil {
			logging.WarnErr(logSubsystem, err, "Token renewal failed for %s", a.identity.ConsumerKey)
			return nil, &RenewalError{Err: err}
		}

		renewed, err := a.applyAndPersist(flightCtx, grant)
		if err != nil {
			a.onStoreError(err)
		}
		logging.Info(logSubsystem, "Renewed access token for %s (expires %s)", a.identity.ConsumerKey, renewed.ExpiresAt)
		return renewed, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return oauth.TokenState{}, res.Err
		}
		if res.Shared {
			logging.Debug(logSubsystem, "Joined in-flight renewal for %s", a.identity.ConsumerKey)
		}
		return res.Val.(oauth.TokenState), nil
	case <-ctx.Done():
		return oauth.TokenState{}, &RenewalError{Err: ctx.Err()}
	}
}
