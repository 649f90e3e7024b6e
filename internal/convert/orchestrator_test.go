package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/loader"
	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/formats/columnar"
)

// writeSentinelNDJSON writes n records whose "seq" field encodes input order.
func writeSentinelNDJSON(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "{\"seq\": %d, \"label\": \"row-%d\"}\n", i, i)
	}
	path := filepath.Join(dir, "input.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func inferFromFile(t *testing.T, path string, cfg *config.Config) *schema.FileSchema {
	t.Helper()
	st, err := loader.Open(path, cfg.Conversion)
	require.NoError(t, err)
	defer st.Close()

	fs, err := schema.NewEngine(cfg.Inference).Infer(st)
	require.NoError(t, err)
	return fs
}

// readSeqColumn reads back every "seq" value of an Arrow IPC artifact in row
// order.
func readSeqColumn(t *testing.T, path string) []int64 {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := ipc.NewFileReader(f)
	require.NoError(t, err)
	defer r.Close()

	var seqs []int64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		idx := rec.Schema().FieldIndices("seq")
		require.Len(t, idx, 1)
		col := rec.Column(idx[0]).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			seqs = append(seqs, col.Value(i))
		}
	}
	return seqs
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	cfg.Output.Overwrite = true
	return cfg
}

func TestConvertFileEager(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 25)
	cfg := testConfig(t)

	fs := inferFromFile(t, path, cfg)
	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs, []columnar.Format{columnar.Arrow})
	require.True(t, res.Success, "err: %v", res.Err)

	assert.Equal(t, StateEagerWrite.String(), res.Strategy)
	assert.Equal(t, int64(25), res.Records)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, ".arrow", filepath.Ext(res.Outputs[0]))

	seqs := readSeqColumn(t, res.Outputs[0])
	require.Len(t, seqs, 25)
	for i, s := range seqs {
		assert.Equal(t, int64(i), s)
	}
}

func TestConvertFileSequentialPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 95)
	cfg := testConfig(t)
	cfg.Conversion.EagerThresholdBytes = 0 // force streaming
	cfg.Conversion.ChunkSize = 10
	cfg.Conversion.ReclaimEvery = 3

	fs := inferFromFile(t, path, cfg)
	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs, []columnar.Format{columnar.Arrow})
	require.True(t, res.Success, "err: %v", res.Err)

	assert.Equal(t, StateSequentialStream.String(), res.Strategy)
	assert.Equal(t, int64(10), res.Chunks)

	seqs := readSeqColumn(t, res.Outputs[0])
	require.Len(t, seqs, 95)
	for i, s := range seqs {
		require.Equal(t, int64(i), s)
	}
}

func TestConvertFileParallelPreservesOrder(t *testing.T) {
	// Ten chunks across ten workers: concatenated output order must equal
	// input order exactly.
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 100)
	cfg := testConfig(t)
	cfg.Conversion.EagerThresholdBytes = 0
	cfg.Conversion.ParallelThresholdBytes = 0 // force the worker pool
	cfg.Conversion.ChunkSize = 10
	cfg.Conversion.Workers = 10
	cfg.Conversion.GroupFactor = 2

	fs := inferFromFile(t, path, cfg)
	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs, []columnar.Format{columnar.Arrow})
	require.True(t, res.Success, "err: %v", res.Err)

	assert.Equal(t, StateParallelStream.String(), res.Strategy)
	assert.Equal(t, int64(10), res.Chunks)

	seqs := readSeqColumn(t, res.Outputs[0])
	require.Len(t, seqs, 100)
	for i, s := range seqs {
		require.Equal(t, int64(i), s)
	}
}

func TestThresholdStraddleYieldsIdenticalSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 40)

	eagerCfg := testConfig(t)
	eagerRes := NewOrchestrator(eagerCfg).ConvertFile(context.Background(), path,
		inferFromFile(t, path, eagerCfg), []columnar.Format{columnar.Arrow})
	require.True(t, eagerRes.Success, "err: %v", eagerRes.Err)

	streamCfg := testConfig(t)
	streamCfg.Conversion.EagerThresholdBytes = 0
	streamCfg.Conversion.ChunkSize = 7
	streamRes := NewOrchestrator(streamCfg).ConvertFile(context.Background(), path,
		inferFromFile(t, path, streamCfg), []columnar.Format{columnar.Arrow})
	require.True(t, streamRes.Success, "err: %v", streamRes.Err)

	openSchema := func(p string) string {
		f, err := os.Open(p)
		require.NoError(t, err)
		defer f.Close()
		r, err := ipc.NewFileReader(f)
		require.NoError(t, err)
		defer r.Close()
		return r.Schema().String()
	}
	assert.Equal(t, openSchema(eagerRes.Outputs[0]), openSchema(streamRes.Outputs[0]))
}

func TestConvertFileSparseFieldAcrossChunks(t *testing.T) {
	// "tags" is null or empty in early chunks and only materializes later;
	// conversion must not fail and early rows stay empty lists or nulls.
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 30; i++ {
		if i < 20 {
			if i%2 == 0 {
				fmt.Fprintf(&b, "{\"seq\": %d, \"tags\": null}\n", i)
			} else {
				fmt.Fprintf(&b, "{\"seq\": %d, \"tags\": []}\n", i)
			}
		} else {
			fmt.Fprintf(&b, "{\"seq\": %d, \"tags\": [\"a\", \"b\"]}\n", i)
		}
	}
	path := filepath.Join(dir, "input.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	cfg := testConfig(t)
	cfg.Conversion.EagerThresholdBytes = 0
	cfg.Conversion.ChunkSize = 10

	fs := inferFromFile(t, path, cfg)
	require.Equal(t, "array<string>", fs.Fields["tags"].Type)

	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs, []columnar.Format{columnar.Arrow})
	require.True(t, res.Success, "err: %v", res.Err)

	f, err := os.Open(res.Outputs[0])
	require.NoError(t, err)
	defer f.Close()
	r, err := ipc.NewFileReader(f)
	require.NoError(t, err)
	defer r.Close()

	var total, withValues int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		idx := rec.Schema().FieldIndices("tags")
		require.Len(t, idx, 1)
		col, ok := rec.Column(idx[0]).(*array.List)
		require.True(t, ok, "tags stays list-typed in every batch")
		for i := 0; i < col.Len(); i++ {
			total++
			if !col.IsNull(i) {
				start, end := col.ValueOffsets(i)
				if end > start {
					withValues++
				}
			}
		}
	}
	assert.Equal(t, 30, total)
	assert.Equal(t, 10, withValues)
}

func TestConvertRequiresArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 5)
	cfg := testConfig(t)

	results := NewOrchestrator(cfg).Convert(context.Background(), []string{path}, []columnar.Format{columnar.Arrow})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "run a scan")
}

func TestConvertUsesPersistedArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 8)
	cfg := testConfig(t)

	fs := inferFromFile(t, path, cfg)
	art := schema.NewArtifact(path, "ndjson", fs)
	require.NoError(t, schema.SaveArtifact(schema.ArtifactPath(path), art))

	results := NewOrchestrator(cfg).Convert(context.Background(), []string{path}, []columnar.Format{columnar.Arrow})
	require.Len(t, results, 1)
	require.True(t, results[0].Success, "err: %v", results[0].Err)
	assert.Equal(t, int64(8), results[0].Records)
}

func TestConvertContinuesPastFailedFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeSentinelNDJSON(t, dir, 5)
	fsGood := inferFromFile(t, good, testConfig(t))
	require.NoError(t, schema.SaveArtifact(schema.ArtifactPath(good),
		schema.NewArtifact(good, "ndjson", fsGood)))

	missing := filepath.Join(dir, "absent.ndjson")

	cfg := testConfig(t)
	results := NewOrchestrator(cfg).Convert(context.Background(),
		[]string{missing, good}, []columnar.Format{columnar.Arrow})
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success, "err: %v", results[1].Err)
}

func TestConvertFileNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 5)
	cfg := testConfig(t)
	cfg.Output.Overwrite = false

	existing := OutputPath(path, cfg.Output, columnar.Arrow)
	require.NoError(t, os.MkdirAll(cfg.Output.Directory, 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	fs := inferFromFile(t, path, cfg)
	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs, []columnar.Format{columnar.Arrow})
	require.False(t, res.Success)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data), "existing artifact is left untouched")
}

func TestConvertFileMultipleFormats(t *testing.T) {
	dir := t.TempDir()
	path := writeSentinelNDJSON(t, dir, 12)
	cfg := testConfig(t)

	fs := inferFromFile(t, path, cfg)
	res := NewOrchestrator(cfg).ConvertFile(context.Background(), path, fs,
		[]columnar.Format{columnar.Parquet, columnar.Arrow, columnar.Avro, columnar.CSV})
	require.True(t, res.Success, "err: %v", res.Err)
	require.Len(t, res.Outputs, 4)
	for _, out := range res.Outputs {
		info, err := os.Stat(out)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}
