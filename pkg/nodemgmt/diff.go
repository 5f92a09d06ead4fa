package nodemgmt

import (
	"encoding/json"
	"reflect"
	"strings"
)

const helloWorldMarker = "Hello World! update for node"

// stripTimestamps returns a copy of v with every map key named
// "timestamp" removed, at any depth, so timestamp-only changes never
// surface in a diff.
func stripTimestamps(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			if k == "timestamp" {
				continue
			}
			out[k] = stripTimestamps(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = stripTimestamps(vv)
		}
		return out
	default:
		return v
	}
}

// containsHelloWorldMarker reports whether data, serialised, textually
// contains the hello-world app's own update marker. Matching the source's
// behaviour, any notification carrying this marker is treated as a
// no-op change regardless of what else differs.
func containsHelloWorldMarker(data any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), helloWorldMarker)
}

// computeDiff reports whether new differs from old once timestamps are
// stripped from both, and if so returns new (timestamp-stripped) as the
// diff payload. A nil old is always a change if new is non-nil.
func computeDiff(old, new any) (changed bool, diff any) {
	if containsHelloWorldMarker(new) {
		return false, nil
	}

	strippedOld := stripTimestamps(old)
	strippedNew := stripTimestamps(new)

	if reflect.DeepEqual(strippedOld, strippedNew) {
		return false, nil
	}
	return true, strippedNew
}
