package jsonutil

import (
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValuePreservesNumbers(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"n": 42}`))
	require.NoError(t, err)
	obj := v.(map[string]interface{})
	assert.Equal(t, gojson.Number("42"), obj["n"])
}

func TestUnmarshalValueRejectsTrailingContent(t *testing.T) {
	_, err := UnmarshalValue([]byte("{\"a\":1}\n{\"a\":2}\n"))
	assert.Error(t, err, "a second top-level value is not one JSON document")

	_, err = UnmarshalValue([]byte(`{"a":1} garbage`))
	assert.Error(t, err)
}

func TestUnmarshalValueAllowsTrailingWhitespace(t *testing.T) {
	v, err := UnmarshalValue([]byte("[1, 2]\n\n"))
	require.NoError(t, err)
	assert.Len(t, v.([]interface{}), 2)
}
