package scope

import (
	"encoding/json"

	"github.com/nebula-core/nebula/pkg/contracts"
)

// FilterSegments returns a copy of metadata with every context_segments
// entry whose scopes don't intersect callerScopeNames removed. All other
// metadata keys pass through unchanged. Implements P3: the result contains
// exactly the segments visible to a caller with the given effective scope
// names.
func FilterSegments(metadata map[string]interface{}, callerScopeNames []string) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	segments := decodeSegments(metadata)
	if segments == nil {
		return metadata
	}

	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if k == contracts.ContextSegmentsKey {
			continue
		}
		out[k] = v
	}

	visible := make([]contracts.ContextSegment, 0, len(segments))
	for _, seg := range segments {
		if Intersects(seg.Scopes, callerScopeNames) {
			visible = append(visible, seg)
		}
	}
	out[contracts.ContextSegmentsKey] = visible
	return out
}

// decodeSegments tolerates both an already-structured []ContextSegment (set
// by code within this process) and the []interface{} shape json.Unmarshal
// produces when metadata arrives as a serialized blob from the store.
func decodeSegments(metadata map[string]interface{}) []contracts.ContextSegment {
	raw, ok := metadata[contracts.ContextSegmentsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []contracts.ContextSegment:
		return v
	case []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var segs []contracts.ContextSegment
		if err := json.Unmarshal(b, &segs); err != nil {
			return nil
		}
		return segs
	default:
		return nil
	}
}
