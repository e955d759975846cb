package credential

import (
	"errors"
	"strings"
	"time"

	"gauth/pkg/oauth"
)

// Record field names. They match the keys the credential has always been
// stored under so existing records stay readable.
const (
	FieldConsumerKey    = "consumerKey"
	FieldConsumerSecret = "consumerSecret"
	FieldAccessToken    = "oauthToken"
	FieldRefreshToken   = "oauthRefreshToken"
	FieldExpiresAt      = "oauthTokenExpiresAt"
)

// ErrInvalidIdentity is returned for identities with an empty key or secret.
var ErrInvalidIdentity = errors.New("consumer key and consumer secret are required")

// ClientIdentity identifies the registered application with the provider.
type ClientIdentity struct {
	ConsumerKey    string
	ConsumerSecret string
}

// NewClientIdentity validates and builds a ClientIdentity.
func NewClientIdentity(consumerKey, consumerSecret string) (ClientIdentity, error) {
	consumerKey = strings.TrimSpace(consumerKey)
	consumerSecret = strings.TrimSpace(consumerSecret)
	if consumerKey == "" || consumerSecret == "" {
		return ClientIdentity{}, ErrInvalidIdentity
	}
	return ClientIdentity{ConsumerKey: consumerKey, ConsumerSecret: consumerSecret}, nil
}

// Credential is the persisted aggregate: identity plus token state.
type Credential struct {
	ClientIdentity
	Token oauth.TokenState
}

// New returns a credential with an empty token state.
func New(identity ClientIdentity) Credential {
	return Credential{ClientIdentity: identity, Token: oauth.EmptyTokenState()}
}

// Record is the flat string form a credential is stored in.
type Record map[string]string

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record encodes the credential.
func (c Credential) Record() Record {
	return Record{
		FieldConsumerKey:    c.ConsumerKey,
		FieldConsumerSecret: c.ConsumerSecret,
		FieldAccessToken:    c.Token.AccessToken,
		FieldRefreshToken:   c.Token.RefreshToken,
		FieldExpiresAt:      c.Token.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

// FromRecord decodes a credential. Missing or unparsable token fields fall
// back to their empty values instead of failing, so a partially written
// record still yields a usable (if unauthorized) credential.
func FromRecord(r Record) Credential {
	c := Credential{
		ClientIdentity: ClientIdentity{
			ConsumerKey:    r[FieldConsumerKey],
			ConsumerSecret: r[FieldConsumerSecret],
		},
		Token: oauth.EmptyTokenState(),
	}
	c.Token.AccessToken = r[FieldAccessToken]
	c.Token.RefreshToken = r[FieldRefreshToken]
	if raw := r[FieldExpiresAt]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			c.Token.ExpiresAt = ts
		}
	}
	return c
}
