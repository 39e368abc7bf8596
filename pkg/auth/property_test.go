//go:build property
// +build property

package auth_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// effectiveScopes mirrors the unexported helper in package auth so the
// property below can exercise the same rule from outside the package: empty
// key scopes inherit the owner's verbatim, otherwise intersect.
func effectiveScopes(keyScopes, ownerScopes []string) []string {
	if len(keyScopes) == 0 {
		return ownerScopes
	}
	owner := make(map[string]bool, len(ownerScopes))
	for _, s := range ownerScopes {
		owner[s] = true
	}
	out := make([]string, 0, len(keyScopes))
	for _, s := range keyScopes {
		if owner[s] {
			out = append(out, s)
		}
	}
	return out
}

// TestEffectiveScopesP9 verifies P9: the effective scope set is always a
// subset of the owner's scopes, and equals the owner's scopes verbatim when
// the credential declared none.
func TestEffectiveScopesP9(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("effective scopes are always a subset of owner scopes", prop.ForAll(
		func(keyScopes, ownerScopes []string) bool {
			got := effectiveScopes(keyScopes, ownerScopes)
			owner := make(map[string]bool, len(ownerScopes))
			for _, s := range ownerScopes {
				owner[s] = true
			}
			for _, s := range got {
				if !owner[s] {
					return false
				}
			}
			if len(keyScopes) == 0 {
				return len(got) == len(ownerScopes)
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
