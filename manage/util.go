package manage

import (
	"strings"

	"github.com/kaz29/oauth-server/errors"
)

type (
	// ValidateURIHandler validates that the redirect URI of the request is
	// allowed by the client's registered URI(s)
	ValidateURIHandler func(registeredURI, redirectURI string) error
)

// DefaultValidateURI requires an exact match against one of the registered
// URIs (the registered value may carry several, space-separated). Prefix or
// substring matching invites redirect confusion, so none is attempted.
func DefaultValidateURI(registeredURI, redirectURI string) error {
	for _, uri := range strings.Fields(registeredURI) {
		if uri == redirectURI {
			return nil
		}
	}
	return errors.ErrInvalidRedirectURI
}

// scopeFields splits a scope string on whitespace and collapses duplicates,
// preserving first-seen order.
func scopeFields(scope string) []string {
	fields := strings.Fields(scope)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// scopeSubset reports whether every requested scope appears in granted.
func scopeSubset(requested, granted []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
