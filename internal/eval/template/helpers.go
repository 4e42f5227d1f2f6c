package template

import (
	"reflect"
	"strings"

	"github.com/aymerick/raymond"
)

// registerHelpers registers the built-in Handlebars helpers
func (e *Engine) registerHelpers() {
	e.helpers["uppercase"] = func(str string) interface{} {
		return e.text(strings.ToUpper(str))
	}

	e.helpers["lowercase"] = func(str string) interface{} {
		return e.text(strings.ToLower(str))
	}

	e.helpers["trim"] = func(str string) interface{} {
		return e.text(strings.TrimSpace(str))
	}

	// default - return default value if first arg is empty
	e.helpers["default"] = func(value interface{}, defaultValue interface{}) interface{} {
		if value == nil || raymond.Str(value) == "" {
			return defaultValue
		}
		return value
	}

	e.helpers["eq"] = func(a, b interface{}) bool {
		return equal(a, b)
	}

	e.helpers["ne"] = func(a, b interface{}) bool {
		return !equal(a, b)
	}

	e.helpers["gt"] = func(a, b interface{}) bool {
		x, okA := toFloat(a)
		y, okB := toFloat(b)
		return okA && okB && x > y
	}

	e.helpers["lt"] = func(a, b interface{}) bool {
		x, okA := toFloat(a)
		y, okB := toFloat(b)
		return okA && okB && x < y
	}

	e.helpers["contains"] = func(str, substr string) bool {
		return strings.Contains(str, substr)
	}

	// join - join array elements with separator
	e.helpers["join"] = func(arr interface{}, sep string) interface{} {
		v := reflect.ValueOf(arr)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return e.text(raymond.Str(arr))
		}
		strs := make([]string, v.Len())
		for i := range strs {
			strs[i] = raymond.Str(v.Index(i).Interface())
		}
		return e.text(strings.Join(strs, sep))
	}

	// len - length of array/string/map
	e.helpers["len"] = func(value interface{}) int {
		v := reflect.ValueOf(value)
		switch v.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return v.Len()
		default:
			return 0
		}
	}
}

// text marks helper output as safe unless the engine escapes output
func (e *Engine) text(s string) interface{} {
	if e.autoescape {
		return s
	}
	return raymond.SafeString(s)
}

func equal(a, b interface{}) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(plain(a), plain(b))
}

func plain(v interface{}) interface{} {
	if s, ok := v.(raymond.SafeString); ok {
		return string(s)
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
