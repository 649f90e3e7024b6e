package validator

import (
	"io"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/config"
)

type sliceSource struct {
	records []map[string]interface{}
	pos     int
}

func (s *sliceSource) Next() (map[string]interface{}, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func num(s string) gojson.Number { return gojson.Number(s) }

func artifactFor(t *testing.T, records []map[string]interface{}) *schema.Artifact {
	t.Helper()
	engine := schema.NewEngine(config.InferenceConfig{SampleSize: 0, Strategy: config.SampleFirst})
	fs, err := engine.Infer(&sliceSource{records: records})
	require.NoError(t, err)
	return schema.NewArtifact("test.json", "ndjson", fs)
}

func TestValidateConformingRecords(t *testing.T) {
	records := []map[string]interface{}{
		{"id": num("1"), "name": "a", "score": num("1.5")},
		{"id": num("2"), "name": "b", "score": nil},
	}
	v, err := New(artifactFor(t, records))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: records})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Records)
	assert.Equal(t, int64(2), report.Valid)
	assert.Empty(t, report.Violations)
}

func TestValidateTypeViolation(t *testing.T) {
	v, err := New(artifactFor(t, []map[string]interface{}{{"id": num("1")}}))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: []map[string]interface{}{
		{"id": "not an int"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Valid)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "id", report.Violations[0].Field)
	assert.Equal(t, "string", report.Violations[0].Got)
	assert.Equal(t, "int", report.Violations[0].Want)
}

func TestValidateWideningWithinSchemaPasses(t *testing.T) {
	// Schema resolved to float; integers are covered by the widening.
	v, err := New(artifactFor(t, []map[string]interface{}{{"x": num("1.5")}}))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: []map[string]interface{}{
		{"x": num("2")},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Valid)
}

func TestValidateObjectArraysRoundTrip(t *testing.T) {
	// The artifact encodes array<object> without field maps; records identical
	// to the ones inferred from must still validate clean.
	records := []map[string]interface{}{
		{"items": []interface{}{
			map[string]interface{}{"sku": "a", "qty": num("2")},
			map[string]interface{}{"sku": "b", "qty": num("1")},
		}},
		{"items": []interface{}{
			map[string]interface{}{"sku": "c"},
		}},
	}
	v, err := New(artifactFor(t, records))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: records})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Valid)
	assert.Empty(t, report.Violations)
}

func TestValidateNullInNonNullableField(t *testing.T) {
	v, err := New(artifactFor(t, []map[string]interface{}{{"id": num("1")}}))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: []map[string]interface{}{
		{"id": nil},
	}})
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "null in non-nullable field", report.Violations[0].Reason)
}

func TestValidateUnknownAndMissingFields(t *testing.T) {
	v, err := New(artifactFor(t, []map[string]interface{}{{"id": num("1")}}))
	require.NoError(t, err)

	report, err := v.Validate(&sliceSource{records: []map[string]interface{}{
		{"surprise": "value"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Valid)

	reasons := make(map[string]bool)
	for _, violation := range report.Violations {
		reasons[violation.Reason] = true
	}
	assert.True(t, reasons["field not in schema"])
	assert.True(t, reasons["required field missing"])
}
