package oauth

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// FarPast is the expiry of an empty TokenState. Any clock reading is at or
// after it, so an empty state is always expired.
var FarPast = time.Unix(0, 0).UTC()

// TokenState is the current access token, refresh token and expiry instant.
// It is replaced wholesale on every grant or renewal.
type TokenState struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string

	// RefreshToken is used to obtain new access tokens without user interaction.
	RefreshToken string

	// ExpiresAt is the instant the access token stops being valid.
	ExpiresAt time.Time
}

// EmptyTokenState returns the state of an authenticator that never authorized.
func EmptyTokenState() TokenState {
	return TokenState{ExpiresAt: FarPast}
}

// IsAuthorized reports whether an access token is present.
// It does not look at expiry: a stale token still counts as authorized until
// a request discovers it has expired.
func (t TokenState) IsAuthorized() bool {
	return t.AccessToken != ""
}

// IsExpired reports whether the access token has expired at the current time.
func (t TokenState) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether now is at or after ExpiresAt.
func (t TokenState) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HasRefreshToken reports whether the state can be renewed without user interaction.
func (t TokenState) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// Apply replaces the state with a grant result. The access token is always
// replaced; the refresh token and expiry are kept when the result omits them,
// because renewal responses usually do not repeat the refresh token.
func (t *TokenState) Apply(g GrantResult) {
	t.AccessToken = g.AccessToken
	if g.RefreshToken != "" {
		t.RefreshToken = g.RefreshToken
	}
	if !g.ExpiresAt.IsZero() {
		t.ExpiresAt = g.ExpiresAt
	}
}

// ToOAuth2Token converts the state to an oauth2.Token for use with golang.org/x/oauth2.
func (t TokenState) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

const redacted = "[REDACTED]"

// String hides both tokens so a TokenState can be logged or wrapped into an
// error without leaking credentials.
func (t TokenState) String() string {
	return fmt.Sprintf("TokenState{access=%s, refresh=%s, expires=%s}",
		redactIfSet(t.AccessToken), redactIfSet(t.RefreshToken), t.ExpiresAt.UTC().Format(time.RFC3339))
}

// GoString is used by %#v and redacts like String.
func (t TokenState) GoString() string {
	return "oauth." + t.String()
}

// LogValue implements slog.LogValuer.
func (t TokenState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", redactIfSet(t.AccessToken)),
		slog.String("refresh_token", redactIfSet(t.RefreshToken)),
		slog.Time("expires_at", t.ExpiresAt),
	)
}

func redactIfSet(value string) string {
	if value == "" {
		return "<none>"
	}
	return redacted
}

// GrantResult holds the token fields of a token endpoint response.
// Empty RefreshToken and zero ExpiresAt mean "not provided".
type GrantResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// GrantResultFromOAuth2 extracts a GrantResult from an oauth2.Token.
func GrantResultFromOAuth2(token *oauth2.Token) GrantResult {
	if token == nil {
		return GrantResult{}
	}
	return GrantResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
}
