package oauth

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestTokenState_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state TokenState
		want  bool
	}{
		{"past expiry", TokenState{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, true},
		{"expiry equals now", TokenState{AccessToken: "a", ExpiresAt: now}, true},
		{"future expiry", TokenState{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, false},
		{"empty state", EmptyTokenState(), true},
		{"zero expiry", TokenState{AccessToken: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsExpiredAt(now))
		})
	}
}

func TestTokenState_IsAuthorized(t *testing.T) {
	t.Run("empty state is not authorized", func(t *testing.T) {
		assert.False(t, EmptyTokenState().IsAuthorized())
	})

	t.Run("expired token is still authorized", func(t *testing.T) {
		state := TokenState{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}
		assert.True(t, state.IsAuthorized())
		assert.True(t, state.IsExpired())
	})

	t.Run("future expiry with token is authorized and valid", func(t *testing.T) {
		state := TokenState{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}
		assert.True(t, state.IsAuthorized() && !state.IsExpired())
	})

	t.Run("empty access token with future expiry is not authorized", func(t *testing.T) {
		state := TokenState{ExpiresAt: time.Now().Add(time.Hour)}
		assert.False(t, state.IsAuthorized())
	})
}

func TestTokenState_Apply(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("replaces every provided field", func(t *testing.T) {
		state := EmptyTokenState()
		state.Apply(GrantResult{AccessToken: "tok1", RefreshToken: "ref1", ExpiresAt: expiry})

		assert.Equal(t, TokenState{AccessToken: "tok1", RefreshToken: "ref1", ExpiresAt: expiry}, state)
	})

	t.Run("keeps refresh token when omitted", func(t *testing.T) {
		state := TokenState{AccessToken: "tok1", RefreshToken: "ref1", ExpiresAt: expiry}
		next := expiry.Add(time.Hour)
		state.Apply(GrantResult{AccessToken: "tok2", ExpiresAt: next})

		assert.Equal(t, "tok2", state.AccessToken)
		assert.Equal(t, "ref1", state.RefreshToken)
		assert.Equal(t, next, state.ExpiresAt)
	})

	t.Run("keeps expiry when omitted", func(t *testing.T) {
		state := TokenState{AccessToken: "tok1", RefreshToken: "ref1", ExpiresAt: expiry}
		state.Apply(GrantResult{AccessToken: "tok2"})

		assert.Equal(t, "tok2", state.AccessToken)
		assert.Equal(t, expiry, state.ExpiresAt)
	})
}

func TestGrantResultFromOAuth2(t *testing.T) {
	expiry := time.Now().Add(time.Hour)

	assert.Equal(t, GrantResult{}, GrantResultFromOAuth2(nil))
	assert.Equal(t,
		GrantResult{AccessToken: "a", RefreshToken: "r", ExpiresAt: expiry},
		GrantResultFromOAuth2(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}),
	)
}

func TestTokenState_ToOAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	token := TokenState{AccessToken: "a", RefreshToken: "r", ExpiresAt: expiry}.ToOAuth2Token()

	assert.Equal(t, "a", token.AccessToken)
	assert.Equal(t, "r", token.RefreshToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, expiry, token.Expiry)
}

func TestTokenState_Redaction(t *testing.T) {
	state := TokenState{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: time.Now()}

	for _, formatted := range []string{
		state.String(),
		fmt.Sprintf("%v", state),
		fmt.Sprintf("%#v", state),
		fmt.Sprintf("%+v", state),
	} {
		assert.NotContains(t, formatted, "secret-access")
		assert.NotContains(t, formatted, "secret-refresh")
		assert.Contains(t, formatted, "[REDACTED]")
	}

	assert.Contains(t, EmptyTokenState().String(), "access=<none>")

	value := state.LogValue()
	assert.Equal(t, slog.KindGroup, value.Kind())
	assert.NotContains(t, value.String(), "secret-access")
}
