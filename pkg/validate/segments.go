package validate

import (
	"fmt"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// ValidateContextSegments checks that every segment's scopes is a subset
// of the record's own scope names. This is enforced independent of read
// visibility: a segment naming a scope the record itself doesn't carry can
// never become visible to anyone, which almost always indicates a caller
// mistake worth failing loudly on rather than silently admitting.
func ValidateContextSegments(segments []contracts.ContextSegment, recordScopeNames []string) error {
	allowed := make(map[string]bool, len(recordScopeNames))
	for _, name := range recordScopeNames {
		allowed[name] = true
	}
	for i, seg := range segments {
		for _, scope := range seg.Scopes {
			if !allowed[scope] {
				return contracts.InvalidInput(
					fmt.Sprintf("metadata.context_segments[%d].scopes", i),
					fmt.Sprintf("segment scope %q is not among the record's scopes", scope),
				)
			}
		}
	}
	return nil
}
