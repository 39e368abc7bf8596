// Package scope implements the Scope Mediator (C4): pure predicates over
// scope-id/scope-name sets, store-assisted write/visibility checks, and
// read-side context-segment filtering. No predicate here ever issues a
// query; only the Checker methods in mediator.go do.
package scope

// AdminScopeNames is the single configuration constant the mediator's
// isAdmin check consults, named once and referenced everywhere a
// caller's admin status matters.
var AdminScopeNames = []string{"admin", "vault-only", "sensitive"}

// IsAdmin reports whether any of callerScopeNames is in AdminScopeNames.
// Admin status bypasses per-record scope checks on reads and grants access
// to reviewer-only operations (listPending, taxonomy rename).
func IsAdmin(callerScopeNames []string) bool {
	for _, name := range callerScopeNames {
		for _, admin := range AdminScopeNames {
			if name == admin {
				return true
			}
		}
	}
	return false
}

// HasWriteScopes reports whether recordScopes is empty or fully contained
// in callerScopes. An empty recordScopes set trivially passes: a record
// with no declared scopes has no write restriction to enforce.
func HasWriteScopes(callerScopes, recordScopes []string) bool {
	if len(recordScopes) == 0 {
		return true
	}
	allowed := toSet(callerScopes)
	for _, s := range recordScopes {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// Subset returns the elements of requested that are also in allowed,
// preserving requested's order. Used when an agent-submitted write lists
// scopes the agent does not itself hold, to silently narrow rather than
// reject the request outright.
func Subset(requested, allowed []string) []string {
	allowedSet := toSet(allowed)
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		if allowedSet[r] {
			out = append(out, r)
		}
	}
	return out
}

// Intersects reports whether a and b share at least one element.
func Intersects(a, b []string) bool {
	set := toSet(b)
	for _, v := range a {
		if set[v] {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
