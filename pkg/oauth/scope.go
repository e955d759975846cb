package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// Scope is one of the provider scopes gauth knows how to request.
// New scopes are added here; there is no way to request an arbitrary string.
type Scope string

const (
	// ScopeAnalyticsReadonly grants read access to Google Analytics data.
	ScopeAnalyticsReadonly Scope = "https://www.googleapis.com/auth/analytics.readonly"

	// ScopeAnalytics grants read and write access to Google Analytics data.
	ScopeAnalytics Scope = "https://www.googleapis.com/auth/analytics"

	// ScopeUserinfoEmail grants access to the user's email address.
	ScopeUserinfoEmail Scope = "https://www.googleapis.com/auth/userinfo.email"

	// ScopeUserinfoProfile grants access to the user's basic profile.
	ScopeUserinfoProfile Scope = "https://www.googleapis.com/auth/userinfo.profile"
)

const scopePrefix = "https://www.googleapis.com/auth/"

var knownScopes = map[Scope]struct{}{
	ScopeAnalyticsReadonly: {},
	ScopeAnalytics:         {},
	ScopeUserinfoEmail:     {},
	ScopeUserinfoProfile:   {},
}

var (
	// ErrUnknownScope is returned for scope values outside the supported set.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrEmptyScopeSet is returned when no scope is requested.
	ErrEmptyScopeSet = errors.New("at least one scope is required")
)

// Valid reports whether s is one of the supported scopes.
func (s Scope) Valid() bool {
	_, ok := knownScopes[s]
	return ok
}

// ShortName returns the scope without the provider URL prefix,
// e.g. "analytics.readonly".
func (s Scope) ShortName() string {
	return strings.TrimPrefix(string(s), scopePrefix)
}

// ParseScope accepts either the full scope URL or its short name.
func ParseScope(value string) (Scope, error) {
	value = strings.TrimSpace(value)
	candidate := Scope(value)
	if !strings.HasPrefix(value, scopePrefix) {
		candidate = Scope(scopePrefix + value)
	}
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, value)
	}
	return candidate, nil
}

// ScopeSet is a validated, duplicate-free, ordered set of scopes.
type ScopeSet struct {
	scopes []Scope
}

// NewScopeSet validates the given scopes and builds a ScopeSet.
// Duplicates are dropped; order of first appearance is kept.
func NewScopeSet(scopes ...Scope) (ScopeSet, error) {
	if len(scopes) == 0 {
		return ScopeSet{}, ErrEmptyScopeSet
	}

	seen := make(map[Scope]struct{}, len(scopes))
	out := make([]Scope, 0, len(scopes))
	for _, s := range scopes {
		if !s.Valid() {
			return ScopeSet{}, fmt.Errorf("%w: %q", ErrUnknownScope, string(s))
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return ScopeSet{scopes: out}, nil
}

// ParseScopeSet builds a ScopeSet from full URLs or short names.
func ParseScopeSet(values []string) (ScopeSet, error) {
	scopes := make([]Scope, 0, len(values))
	for _, v := range values {
		s, err := ParseScope(v)
		if err != nil {
			return ScopeSet{}, err
		}
		scopes = append(scopes, s)
	}
	return NewScopeSet(scopes...)
}

// Scopes returns a copy of the scopes in the set.
func (s ScopeSet) Scopes() []Scope {
	out := make([]Scope, len(s.scopes))
	copy(out, s.scopes)
	return out
}

// Strings returns the scopes as plain strings, as golang.org/x/oauth2 expects them.
func (s ScopeSet) Strings() []string {
	out := make([]string, len(s.scopes))
	for i, scope := range s.scopes {
		out[i] = string(scope)
	}
	return out
}

// String returns the space-separated scope parameter value.
func (s ScopeSet) String() string {
	return strings.Join(s.Strings(), " ")
}

// Contains reports whether scope is part of the set.
func (s ScopeSet) Contains(scope Scope) bool {
	for _, candidate := range s.scopes {
		if candidate == scope {
			return true
		}
	}
	return false
}

// Len returns the number of scopes in the set.
func (s ScopeSet) Len() int {
	return len(s.scopes)
}

// IsZero reports whether the set was never built through NewScopeSet.
func (s ScopeSet) IsZero() bool {
	return len(s.scopes) == 0
}
