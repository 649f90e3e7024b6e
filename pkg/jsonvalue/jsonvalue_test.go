package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeElement(t *testing.T) {
	obj := map[string]interface{}{"a": 1}
	assert.Equal(t, obj, NormalizeElement(obj))

	assert.Equal(t,
		map[string]interface{}{"column_0": "x", "column_1": int64(2)},
		NormalizeElement([]interface{}{"x", int64(2)}))

	assert.Equal(t, map[string]interface{}{"value": true}, NormalizeElement(true))
	assert.Equal(t, map[string]interface{}{"value": nil}, NormalizeElement(nil))
}

func TestFlatten(t *testing.T) {
	flat := Flatten(map[string]interface{}{
		"id": int64(1),
		"user": map[string]interface{}{
			"name": "ada",
			"address": map[string]interface{}{
				"city": "London",
			},
		},
		"tags":  []interface{}{"a", "b"},
		"empty": map[string]interface{}{},
	})

	assert.Equal(t, map[string]interface{}{
		"id":                int64(1),
		"user.name":         "ada",
		"user.address.city": "London",
		"tags":              []interface{}{"a", "b"},
		"empty":             map[string]interface{}{},
	}, flat)
}

func TestFlattenDoesNotModifyInput(t *testing.T) {
	in := map[string]interface{}{
		"nested": map[string]interface{}{"k": "v"},
	}
	_ = Flatten(in)
	assert.Contains(t, in, "nested")
	assert.NotContains(t, in, "nested.k")
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]interface{}{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
