package template

import "github.com/aymerick/raymond"

// safeMap copies data, marking strings as safe so raymond does not escape them.
// The caller's values are never modified.
func safeMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = safeValue(v)
	}
	return out
}

func safeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return raymond.SafeString(val)
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = raymond.SafeString(s)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = safeValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, s := range val {
			out[k] = raymond.SafeString(s)
		}
		return out
	case map[string]interface{}:
		return safeMap(val)
	default:
		return v
	}
}
