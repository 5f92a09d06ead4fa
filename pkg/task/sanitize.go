package task

import "encoding/json"

// notSerializable is substituted, recursively, for any value that
// encoding/json cannot marshal, matching the source's
// `json.dumps(data, default=lambda obj: "<not serializable>")` behaviour:
// a pragmatic loss of information in exchange for never failing a publish.
const notSerializable = "<not serializable>"

// Sanitize walks v and returns a copy safe to pass to Marshal, replacing
// any value that cannot be JSON-encoded with the literal string
// "<not serializable>". Maps and slices are walked recursively; any other
// type is checked directly by attempting to marshal it.
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = Sanitize(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = Sanitize(vv)
		}
		return out
	case nil, string, bool, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val
	default:
		if _, err := json.Marshal(val); err != nil {
			return notSerializable
		}
		return val
	}
}
