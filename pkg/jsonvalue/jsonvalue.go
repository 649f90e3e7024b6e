// Package jsonvalue provides shape normalization and flattening for decoded
// JSON values. All downstream logic (inference, assembly, validation) operates
// on the flat field names produced here, so the dotted-path scheme must be
// identical on every pass over a file.
package jsonvalue

import (
	"sort"
	"strconv"
)

// Separator joins nested object keys into flattened field names.
const Separator = "."

// positionalField names the i-th element of an array-shaped row.
func positionalField(i int) string {
	return "column_" + strconv.Itoa(i)
}

// ScalarField is the field name used when a record stream yields bare
// non-object values.
const ScalarField = "value"

// NormalizeElement converts one raw stream element into a record-shaped object.
// Array rows become objects with positional field names, bare scalars are
// wrapped under a single ScalarField, objects pass through unchanged.
func NormalizeElement(v interface{}) map[string]interface{} {
	switch e := v.(type) {
	case map[string]interface{}:
		return e
	case []interface{}:
		obj := make(map[string]interface{}, len(e))
		for i, item := range e {
			obj[positionalField(i)] = item
		}
		return obj
	default:
		return map[string]interface{}{ScalarField: v}
	}
}

// Flatten rewrites nested objects into dotted-path fields. Arrays are not
// descended into: they stay whole under their field name. The input map is
// not modified.
func Flatten(obj map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(obj))
	flattenInto(flat, "", obj)
	return flat
}

func flattenInto(dst map[string]interface{}, prefix string, obj map[string]interface{}) {
	for key, value := range obj {
		name := key
		if prefix != "" {
			name = prefix + Separator + key
		}
		if nested, ok := value.(map[string]interface{}); ok && len(nested) > 0 {
			flattenInto(dst, name, nested)
			continue
		}
		dst[name] = value
	}
}

// SortedKeys returns the map's keys in lexicographic order. Field order is
// deterministic everywhere because every consumer iterates via SortedKeys.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
