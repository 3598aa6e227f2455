package client

// DefaultSentinel is the string the terminology service uses in place of null.
const DefaultSentinel = "NONE"

// NormalizeNulls returns a copy of v where every string exactly equal to
// sentinel is replaced by nil. Maps and slices are walked recursively; other
// values pass through untouched. The input is never modified.
func NormalizeNulls(v any, sentinel string) any {
	switch t := v.(type) {
	case string:
		if t == sentinel {
			return nil
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = NormalizeNulls(item, sentinel)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = NormalizeNulls(item, sentinel)
		}
		return out
	default:
		return v
	}
}
