package canonicalize

import "encoding/json"

// FieldChange describes the before/after value of a single top-level
// field that differs between two canonicalized payloads.
type FieldChange struct {
	Field  string          `json:"field"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Diff canonicalizes before and after and returns the top-level fields
// that changed between them. A field present in after but absent from
// before has a nil Before; a field removed in after has a nil After.
// Nested objects are compared as whole values, not recursively walked:
// the approval reviewer sees "metadata changed" rather than a
// line-by-line nested diff.
func Diff(before, after interface{}) ([]FieldChange, error) {
	beforeMap, err := toCanonicalMap(before)
	if err != nil {
		return nil, err
	}
	afterMap, err := toCanonicalMap(after)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(beforeMap)+len(afterMap))
	var changes []FieldChange
	for k := range beforeMap {
		seen[k] = true
	}
	for k := range afterMap {
		seen[k] = true
	}

	for field := range seen {
		b, bOK := beforeMap[field]
		a, aOK := afterMap[field]
		if bOK && aOK && string(b) == string(a) {
			continue
		}
		change := FieldChange{Field: field}
		if bOK {
			change.Before = b
		}
		if aOK {
			change.After = a
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func toCanonicalMap(v interface{}) (map[string]json.RawMessage, error) {
	canonical, err := JCS(v)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(canonical, &out); err != nil {
		return nil, err
	}
	return out, nil
}
