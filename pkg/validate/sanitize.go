// Package validate implements the per-entity-type metadata validation,
// banned-key rejection, and string sanitization the action executors (C6)
// run over every write before it reaches the store.
package validate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// controlAndBidi removes Unicode control characters (category Cc) and
// format characters (category Cf, which includes every bidi override and
// embedding control: LRM, RLM, LRE, RLE, PDF, LRO, RLO, LRI, RLI, FSI,
// PDI). Metadata strings round-trip through several transports before a
// reviewer reads them, and a bidi override can make a proposal render
// differently than it diffs.
var controlAndBidi = transform.Chain(runes.Remove(runes.In(unicode.Cf)), runes.Remove(runes.In(unicode.Cc)))

// StripControlAndBidi removes control and bidi-format characters from s.
// Tab, newline and carriage return are in Cc and are removed too; the
// space character is not in Cc and is kept.
func StripControlAndBidi(s string) string {
	out, _, err := transform.String(controlAndBidi, s)
	if err != nil {
		// transform.String only errors on malformed input it cannot
		// recover from; fall back to a byte-level strip rather than
		// dropping the field entirely.
		var b strings.Builder
		for _, r := range s {
			if unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r) {
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	}
	return out
}

// SanitizeStrings walks a metadata object recursively, applying
// StripControlAndBidi to every string value and string map key it finds,
// and returns a sanitized copy; the input is not modified. Non-string
// leaves (numbers, booleans, nil) are returned unchanged.
func SanitizeStrings(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return StripControlAndBidi(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[StripControlAndBidi(k)] = SanitizeStrings(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = SanitizeStrings(val)
		}
		return out
	default:
		return v
	}
}
