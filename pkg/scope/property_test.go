//go:build property
// +build property

package scope_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nebula-core/nebula/pkg/contracts"
	"github.com/nebula-core/nebula/pkg/scope"
)

// TestHasWriteScopesSubset verifies P1: a write is permitted only when
// recordScopes is a subset of callerScopes (or recordScopes is empty).
func TestHasWriteScopesSubset(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("HasWriteScopes permits iff recordScopes subset of callerScopes", prop.ForAll(
		func(caller, record []string) bool {
			got := scope.HasWriteScopes(caller, record)
			want := isSubset(record, caller) || len(record) == 0
			return got == want
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestFilterSegmentsCorrectness verifies P3: filtering returns exactly the
// segments whose scopes intersect the caller's effective scope names.
func TestFilterSegmentsCorrectness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("FilterSegments keeps exactly the intersecting segments", prop.ForAll(
		func(segScopes []string, callerScopes []string) bool {
			metadata := map[string]interface{}{
				contracts.ContextSegmentsKey: []contracts.ContextSegment{
					{Text: "only-segment", Scopes: segScopes},
				},
			}
			filtered := scope.FilterSegments(metadata, callerScopes)
			segs, _ := filtered[contracts.ContextSegmentsKey].([]contracts.ContextSegment)

			wantVisible := scope.Intersects(segScopes, callerScopes)
			if wantVisible {
				return len(segs) == 1
			}
			return len(segs) == 0
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func isSubset(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if !set[v] {
			return false
		}
	}
	return true
}
