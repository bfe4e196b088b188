// Package merge implements the partial-update rule for game states: nested
// objects merge key by key, every other value is replaced wholesale.
package merge

import (
	"reflect"
	"strings"

	"github.com/mohae/deepcopy"
)

var mapType = reflect.TypeOf(map[string]any(nil))

// Merge returns current with updates applied. When a key holds an object on
// both sides the two objects are merged recursively; otherwise the update
// value replaces the current one, including arrays. Neither argument is
// modified and the result shares no references with either.
func Merge(current, updates map[string]any) map[string]any {
	merged := copyMap(current)
	if merged == nil {
		merged = make(map[string]any, len(updates))
	}
	mergeInto(merged, updates)
	return merged
}

func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := asMap(value)
		dstMap, dstIsMap := asMap(dst[key])
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			dst[key] = dstMap
			continue
		}
		dst[key] = deepcopy.Copy(value)
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := deepcopy.Copy(m).(map[string]any)
	return out
}

// asMap recognises map[string]any and named types built on it.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().ConvertibleTo(mapType) {
		if rv.IsNil() {
			return nil, false
		}
		return rv.Convert(mapType).Interface().(map[string]any), true
	}
	return nil, false
}

// Clamp bounds the number at the dotted path in state to [min, max], in
// place. It reports whether a number was found there. Callers use it on
// updates before merging when a field has a domain range.
func Clamp(state map[string]any, path string, min, max float64) bool {
	keys := strings.Split(path, ".")
	node := state
	for _, k := range keys[:len(keys)-1] {
		next, ok := asMap(node[k])
		if !ok {
			return false
		}
		node = next
	}

	last := keys[len(keys)-1]
	var n float64
	switch v := node[last].(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	default:
		return false
	}
	switch {
	case n < min:
		n = min
	case n > max:
		n = max
	}
	node[last] = n
	return true
}
