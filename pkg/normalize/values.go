package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// generic lifts typed Go values to the map[string]any / []any shapes the
// rules dispatch on.
func generic(raw any) any {
	switch v := raw.(type) {
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case map[any]any:
		return stringKeys(v)
	}
	return raw
}

// stringKeys converts map[any]any values, as produced by some YAML
// decoders, into map[string]any recursively.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	}
	return v
}

// truthy follows loose truthiness: nil, false, zero, NaN and "" are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case json.Number:
		return t != "" && t != "0"
	}
	return true
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, uint64, json.Number:
		return true
	}
	return false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// formatValue renders a sensor reading for display. Missing values, NaN
// and the literal "NaN" yield nil; composite values are dropped.
func formatValue(v any) *string {
	switch t := v.(type) {
	case nil, map[string]any, []any:
		return nil
	case string:
		if t == "NaN" {
			return nil
		}
	case float64:
		if math.IsNaN(t) {
			return nil
		}
	}
	s := scalarString(v)
	return &s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
