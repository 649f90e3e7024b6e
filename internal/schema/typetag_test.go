package schema

import (
	stdjson "encoding/json"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyScalars(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want Kind
	}{
		{"nil", nil, KindNull},
		{"bool", true, KindBool},
		{"integer number", gojson.Number("42"), KindInt},
		{"negative integer", gojson.Number("-7"), KindInt},
		{"decimal number", gojson.Number("3.14"), KindFloat},
		{"exponent number", gojson.Number("1e6"), KindFloat},
		{"overflowing integer", gojson.Number("99999999999999999999"), KindFloat},
		{"float64", 2.5, KindFloat},
		{"string", "hello", KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in).Kind)
		})
	}
}

func TestClassifyStdlibDecodedNumbers(t *testing.T) {
	// The streaming and relaxed-syntax paths decode through encoding/json;
	// gojson.Number aliases its Number type, so one switch arm covers both.
	var v interface{}
	dec := stdjson.NewDecoder(strings.NewReader("42"))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, KindInt, Classify(v).Kind)

	dec = stdjson.NewDecoder(strings.NewReader("2.5"))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, KindFloat, Classify(v).Kind)
}

func TestClassifyArrays(t *testing.T) {
	t.Run("empty array", func(t *testing.T) {
		tag := Classify([]interface{}{})
		require.Equal(t, KindArray, tag.Kind)
		assert.Equal(t, KindNull, tag.Elem.Kind)
	})

	t.Run("homogeneous elements", func(t *testing.T) {
		tag := Classify([]interface{}{gojson.Number("1"), gojson.Number("2")})
		require.Equal(t, KindArray, tag.Kind)
		assert.Equal(t, KindInt, tag.Elem.Kind)
	})

	t.Run("mixed numeric elements widen to float", func(t *testing.T) {
		tag := Classify([]interface{}{gojson.Number("1"), gojson.Number("2.5")})
		assert.Equal(t, KindFloat, tag.Elem.Kind)
	})

	t.Run("mixed scalar elements widen to string", func(t *testing.T) {
		tag := Classify([]interface{}{gojson.Number("1"), "two"})
		assert.Equal(t, KindString, tag.Elem.Kind)
	})

	t.Run("null elements leave element type intact", func(t *testing.T) {
		tag := Classify([]interface{}{nil, "x", nil})
		assert.Equal(t, KindString, tag.Elem.Kind)
	})
}

func TestMergeLattice(t *testing.T) {
	tests := []struct {
		name string
		a, b *TypeTag
		want string
	}{
		{"null is identity", Null(), intTag, "int"},
		{"equal scalars", stringTag, stringTag, "string"},
		{"int widens to float", intTag, floatTag, "float"},
		{"bool and int widen to string", boolTag, intTag, "string"},
		{"float and string widen to string", floatTag, stringTag, "string"},
		{"arrays merge element-wise", ArrayOf(intTag), ArrayOf(floatTag), "array<float>"},
		{"array and scalar widen to string", ArrayOf(intTag), intTag, "string"},
		{"array and object widen to string", ArrayOf(intTag), &TypeTag{Kind: KindObject}, "string"},
		{"empty array merges into typed array", ArrayOf(Null()), ArrayOf(stringTag), "array<string>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.a, tt.b).String())
			assert.Equal(t, tt.want, Merge(tt.b, tt.a).String(), "merge must be commutative")
		})
	}
}

func TestMergeObjects(t *testing.T) {
	a := Classify(map[string]interface{}{"id": gojson.Number("1"), "name": "a"})
	b := Classify(map[string]interface{}{"id": gojson.Number("2.5"), "extra": true})

	merged := Merge(a, b)
	require.Equal(t, KindObject, merged.Kind)
	assert.Equal(t, KindFloat, merged.Fields["id"].Kind)
	assert.Equal(t, KindString, merged.Fields["name"].Kind)
	assert.Equal(t, KindBool, merged.Fields["extra"].Kind)
}

func TestMergeAssociativity(t *testing.T) {
	tags := []*TypeTag{
		Null(),
		intTag,
		floatTag,
		stringTag,
		boolTag,
		ArrayOf(intTag),
		ArrayOf(stringTag),
		Classify(map[string]interface{}{"x": gojson.Number("1")}),
	}
	for _, a := range tags {
		for _, b := range tags {
			for _, c := range tags {
				left := Merge(Merge(a, b), c)
				right := Merge(a, Merge(b, c))
				assert.True(t, left.Equal(right),
					"(%s ∨ %s) ∨ %s = %s but %s ∨ (%s ∨ %s) = %s",
					a, b, c, left, a, b, c, right)
			}
		}
	}
}

func TestTagStringRoundTrip(t *testing.T) {
	for _, s := range []string{"null", "bool", "int", "float", "string", "array<int>", "array<array<string>>", "object"} {
		tag, ok := ParseTag(s)
		require.True(t, ok, s)
		assert.Equal(t, s, tag.String())
	}

	_, ok := ParseTag("decimal")
	assert.False(t, ok)
}
