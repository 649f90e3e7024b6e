package loader

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, st *Stream) []map[string]interface{} {
	t.Helper()
	var records []map[string]interface{}
	for {
		rec, err := st.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

// streamingCfg forces the streaming path for tiny fixtures.
func streamingCfg() config.ConversionConfig {
	cfg := config.Default().Conversion
	cfg.EagerThresholdBytes = 0
	return cfg
}

func eagerCfg() config.ConversionConfig {
	return config.Default().Conversion
}

func TestOpenNDJSONStreaming(t *testing.T) {
	path := writeFile(t, "data.ndjson", `{"a":1}
{"a":2}

not json
{"a":3}
`)
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DialectNDJSON, st.Dialect())
	records := drain(t, st)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), st.Skipped())
}

func TestOpenNDJSONEager(t *testing.T) {
	// Below the eager threshold the whole buffer is parsed at once; a
	// multi-record NDJSON file must fail the strict whole-document parse and
	// fall through to line splitting with every record intact.
	path := writeFile(t, "data.ndjson", `{"a":1}
{"a":2}
{"a":3}
`)
	st, err := Open(path, eagerCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DialectNDJSON, st.Dialect())
	records := drain(t, st)
	require.Len(t, records, 3)
	assert.Equal(t, int64(0), st.Skipped())
}

func TestOpenTopLevelArrayStreaming(t *testing.T) {
	path := writeFile(t, "data.json", `[
	  {"id": 1, "name": "a"},
	  {"id": 2, "name": "b"}
	]`)
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DialectArray, st.Dialect())
	records := drain(t, st)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[1]["name"])
}

func TestOpenArrayOfArrays(t *testing.T) {
	path := writeFile(t, "data.json", `[[1,"x"],[2,"y"]]`)
	st, err := Open(path, eagerCfg())
	require.NoError(t, err)

	records := drain(t, st)
	require.Len(t, records, 2)
	assert.Equal(t, "x", records[0]["column_1"])
	assert.Contains(t, records[0], "column_0")
}

func TestOpenArrayOfScalars(t *testing.T) {
	path := writeFile(t, "data.json", `[1, 2, 3]`)
	st, err := Open(path, eagerCfg())
	require.NoError(t, err)

	records := drain(t, st)
	require.Len(t, records, 3)
	assert.Contains(t, records[0], "value")
}

func TestOpenWrappedContainerStreaming(t *testing.T) {
	path := writeFile(t, "data.json", `{
	  "meta": {"count": 2},
	  "results": [{"id": 1}, {"id": 2}]
	}`)
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DialectWrapped, st.Dialect())
	records := drain(t, st)
	require.Len(t, records, 2)
}

func TestContainerKeyPriorityOrder(t *testing.T) {
	// "data" outranks "items" even when it appears later in the document.
	path := writeFile(t, "data.json", `{"items": [{"i": 1}], "data": [{"d": 1}, {"d": 2}]}`)
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	records := drain(t, st)
	require.Len(t, records, 2)
	assert.Contains(t, records[0], "d")
}

func TestOpenGeoJSONStreaming(t *testing.T) {
	path := writeFile(t, "data.geojson", `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "geometry": null, "properties": {"name": "pt1"}},
	    {"type": "Feature", "geometry": null, "properties": {"name": "pt2"}}
	  ]
	}`)
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, DialectGeoJSON, st.Dialect())
	records := drain(t, st)
	require.Len(t, records, 2)
	assert.Equal(t, "pt1", records[0]["name"])
	assert.NotContains(t, records[0], "geometry")
}

func TestOpenSingleObject(t *testing.T) {
	path := writeFile(t, "data.json", `{"name": "only", "n": 1}`)

	for _, cfg := range []config.ConversionConfig{eagerCfg(), streamingCfg()} {
		st, err := Open(path, cfg)
		require.NoError(t, err)
		records := drain(t, st)
		require.Len(t, records, 1)
		assert.Equal(t, "only", records[0]["name"])
		st.Close()
	}
}

func TestOpenRelaxedSyntaxEager(t *testing.T) {
	path := writeFile(t, "data.json", `{
	  // comment lines are tolerated below the eager threshold
	  data: [
	    {id: 1, note: 'single quoted'},
	    {id: 2, note: "strict", },
	  ],
	}`)
	st, err := Open(path, eagerCfg())
	require.NoError(t, err)

	records := drain(t, st)
	require.Len(t, records, 2)
	assert.Equal(t, "single quoted", records[0]["note"])
}

func TestOpenGzipCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.ndjson.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("{\"a\":1}\n{\"a\":2}\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()
	assert.Len(t, drain(t, st), 2)
}

func TestOpenUnparseableLargeFileFailsHard(t *testing.T) {
	// Starts with '{' but never closes: no container key, not NDJSON, and the
	// single-object parse fails. Above the hard cap there is no eager retry.
	path := writeFile(t, "data.json", "{truncated and broken")

	cfg := streamingCfg()
	cfg.HardStreamingBytes = 0
	_, err := Open(path, cfg)
	require.Error(t, err)
}

func TestOpenUnparseableSmallStreamFallsBackToEager(t *testing.T) {
	// Same broken document under the hard cap: the eager chain gets a chance
	// and also fails, but through the dialect-error path.
	path := writeFile(t, "data.json", "{truncated and broken")
	cfg := streamingCfg()
	_, err := Open(path, cfg)
	assert.Error(t, err)
}

func TestUnstructuredFileStreamsAsEmptyNDJSON(t *testing.T) {
	// Anything not starting with '[' or '{' is treated as NDJSON from byte 0;
	// every line fails to parse and is skipped rather than aborting.
	path := writeFile(t, "data.bin", "@@@ @@@\nalso not json\n")
	st, err := Open(path, streamingCfg())
	require.NoError(t, err)
	defer st.Close()

	assert.Empty(t, drain(t, st))
	assert.Equal(t, int64(2), st.Skipped())
}

func TestOpenEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.json", "")
	st, err := Open(path, eagerCfg())
	require.NoError(t, err)
	assert.Empty(t, drain(t, st))
}
