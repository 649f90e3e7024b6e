package convert

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/internal/loader"
	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/formats/columnar"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// State tracks a file conversion through its lifecycle.
type State int

const (
	// StateIdle is the initial state
	StateIdle State = iota
	// StateSchemaReady means the file schema is loaded and strategy chosen
	StateSchemaReady
	// StateEagerWrite converts the whole file as one batch
	StateEagerWrite
	// StateSequentialStream converts chunk by chunk in one goroutine
	StateSequentialStream
	// StateParallelStream assembles chunks on the worker pool
	StateParallelStream
	// StateClosed means the output artifacts are finalized
	StateClosed
	// StateFailed is terminal and reachable from any non-idle state
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSchemaReady:
		return "schema_ready"
	case StateEagerWrite:
		return "eager_write"
	case StateSequentialStream:
		return "sequential_stream"
	case StateParallelStream:
		return "parallel_stream"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult reports the outcome of converting one source file. Failures are
// per-file: a multi-file run continues past individual failures.
type FileResult struct {
	Source   string        `json:"source"`
	Success  bool          `json:"success"`
	Outputs  []string      `json:"outputs,omitempty"`
	Records  int64         `json:"records"`
	Chunks   int64         `json:"chunks"`
	Skipped  int64         `json:"skipped"`
	Strategy string        `json:"strategy"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Orchestrator owns conversion runs: strategy selection, chunk iteration, the
// single output writer, and the row-order and schema invariants across chunks
// and workers.
type Orchestrator struct {
	cfg *config.Config
}

// NewOrchestrator builds an orchestrator over the given configuration.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// Convert converts every path, loading each file's persisted schema artifact.
// It fails clearly per file when an artifact is missing and never aborts the
// run on a single file's failure.
func (o *Orchestrator) Convert(ctx context.Context, paths []string, formats []columnar.Format) []FileResult {
	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		art, err := schema.LoadArtifact(schema.ArtifactPath(compression.TrimExt(path)))
		if err != nil {
			results = append(results, failedResult(path, err))
			metrics.FilesConverted.WithLabelValues("failure").Inc()
			continue
		}
		fs, err := art.Schema()
		if err != nil {
			results = append(results, failedResult(path, err))
			metrics.FilesConverted.WithLabelValues("failure").Inc()
			continue
		}
		results = append(results, *o.ConvertFile(ctx, path, fs, formats))
	}
	return results
}

// ConvertFile converts one file against an already-resolved schema. Row order
// in every output equals input record order; all batches of one file share
// one schema.
func (o *Orchestrator) ConvertFile(ctx context.Context, path string, fs *schema.FileSchema, formats []columnar.Format) *FileResult {
	start := time.Now()
	run := uuid.NewString()
	ctx, span := observability.Tracer().Start(ctx, "convert.file",
		trace.WithAttributes(
			attribute.String("file", path),
			attribute.String("run", run),
		))
	defer span.End()

	c := &fileConversion{
		orch:    o,
		fs:      fs,
		path:    path,
		formats: formats,
		state:   StateIdle,
	}
	result := c.run(ctx)
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("strategy", result.Strategy),
		attribute.Bool("success", result.Success),
		attribute.Int64("records", result.Records),
	)

	if result.Success {
		metrics.FilesConverted.WithLabelValues("success").Inc()
		logger.Info("file converted",
			zap.String("file", path),
			zap.String("run", run),
			zap.String("strategy", result.Strategy),
			zap.Int64("records", result.Records),
			zap.Int64("chunks", result.Chunks),
			zap.Duration("duration", result.Duration))
	} else {
		metrics.FilesConverted.WithLabelValues("failure").Inc()
		logger.Error("file conversion failed",
			zap.String("file", path),
			zap.String("run", run),
			zap.Error(result.Err))
	}
	return result
}

func failedResult(path string, err error) FileResult {
	return FileResult{Source: path, Err: err, Error: err.Error()}
}

// fileConversion carries the per-file state machine.
type fileConversion struct {
	orch    *Orchestrator
	fs      *schema.FileSchema
	path    string
	formats []columnar.Format
	state   State

	assembler  *Assembler
	normalizer *Normalizer
	out        *sink
	records    int64
	chunks     int64
}

func (c *fileConversion) run(ctx context.Context) *FileResult {
	res := &FileResult{Source: c.path}

	info, err := os.Stat(c.path)
	if err != nil {
		return c.fail(res, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to stat input file"))
	}
	cfg := c.orch.cfg.Conversion

	st, err := loader.Open(c.path, cfg)
	if err != nil {
		return c.fail(res, err)
	}
	defer st.Close()

	c.assembler = NewAssembler(c.fs)
	c.state = StateSchemaReady

	switch {
	case info.Size() <= cfg.EagerThresholdBytes:
		c.state = StateEagerWrite
		res.Strategy = StateEagerWrite.String()
		err = c.runEager(ctx, st)
	case info.Size() <= cfg.ParallelThresholdBytes:
		c.state = StateSequentialStream
		res.Strategy = StateSequentialStream.String()
		err = c.runSequential(ctx, st)
	default:
		c.state = StateParallelStream
		res.Strategy = StateParallelStream.String()
		err = c.runParallel(ctx, st)
	}

	res.Skipped = st.Skipped()
	if res.Skipped > 0 {
		metrics.RecordsSkipped.Add(float64(res.Skipped))
	}
	if err != nil {
		return c.fail(res, err)
	}

	if err := c.closeSink(); err != nil {
		return c.fail(res, err)
	}
	c.state = StateClosed
	res.Success = true
	res.Records = c.records
	res.Chunks = c.chunks
	if c.out != nil {
		res.Outputs = c.out.paths
	}
	return res
}

func (c *fileConversion) fail(res *FileResult, err error) *FileResult {
	c.state = StateFailed
	c.abortSink()
	res.Err = err
	res.Error = err.Error()
	res.Records = c.records
	res.Chunks = c.chunks
	return res
}

// runEager loads the whole stream as a single chunk and writes one batch.
func (c *fileConversion) runEager(ctx context.Context, st *loader.Stream) error {
	records, _, err := readChunk(st, 0)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logger.Warn("no records in input, nothing written", zap.String("file", c.path))
		return nil
	}
	return c.writeChunk(ctx, &Chunk{ID: 0, Records: records})
}

// runSequential assembles, normalizes and appends chunks one at a time,
// forcing memory reclamation at a fixed cadence.
func (c *fileConversion) runSequential(ctx context.Context, st *loader.Stream) error {
	cfg := c.orch.cfg.Conversion
	var id int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		records, done, err := readChunk(st, cfg.ChunkSize)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			if err := c.writeChunk(ctx, &Chunk{ID: id, Records: records}); err != nil {
				return err
			}
			id++
			c.maybeReclaim(id)
		}
		if done {
			return nil
		}
	}
}

// runParallel submits chunk groups to the worker pool. Groups are processed
// strictly in chunk order and the pool blocks between groups, so output order
// needs no reordering buffer. Any chunk failure is fatal to the file.
func (c *fileConversion) runParallel(ctx context.Context, st *loader.Stream) error {
	cfg := c.orch.cfg.Conversion
	pool := newWorkerPool(c.assembler, cfg)
	var id int64
	for {
		group, done, err := readGroup(st, cfg.ChunkSize, cfg.GroupSize(), &id)
		if err != nil {
			return err
		}
		if len(group) > 0 {
			frames, err := pool.assembleGroup(ctx, group)
			if err != nil {
				return err
			}
			for i := range group {
				group[i] = nil
			}
			for _, frame := range frames {
				rec, err := DecodeFrame(frame)
				if err != nil {
					return err
				}
				err = c.writeBatch(rec)
				rec.Release()
				if err != nil {
					return err
				}
			}
			c.maybeReclaim(id)
		}
		if done {
			return nil
		}
	}
}

// writeChunk assembles one chunk in-process and appends it.
func (c *fileConversion) writeChunk(ctx context.Context, chunk *Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := c.assembler.Assemble(chunk)
	if err != nil {
		return err
	}
	err = c.writeBatch(rec)
	rec.Release()
	return err
}

// writeBatch owns the running output schema: the first non-empty batch fixes
// it verbatim and opens the writers; later batches are normalized to it.
func (c *fileConversion) writeBatch(rec arrow.Record) error {
	if rec.NumRows() == 0 {
		return nil
	}
	if c.normalizer == nil {
		c.normalizer = NewNormalizer(rec.Schema())
		out, err := openSink(c.path, c.orch.cfg.Output, c.formats, rec.Schema(), c.orch.cfg.Conversion.Compression)
		if err != nil {
			return err
		}
		c.out = out
		rec.Retain()
	} else {
		normalized, err := c.normalizer.Normalize(rec)
		if err != nil {
			return err
		}
		rec = normalized
	}
	defer rec.Release()

	if err := c.out.writeBatch(rec); err != nil {
		return err
	}
	c.records += rec.NumRows()
	c.chunks++
	metrics.RecordsRead.Add(float64(rec.NumRows()))
	metrics.RecordsWritten.Add(float64(rec.NumRows()))
	return nil
}

func (c *fileConversion) maybeReclaim(chunkID int64) {
	every := int64(c.orch.cfg.Conversion.ReclaimEvery)
	if every > 0 && chunkID%every == 0 {
		debug.FreeOSMemory()
	}
}

func (c *fileConversion) closeSink() error {
	if c.out == nil {
		return nil
	}
	return c.out.close()
}

func (c *fileConversion) abortSink() {
	if c.out == nil {
		return
	}
	c.out.abort()
	c.out = nil
}

// readChunk pulls up to size records (all of them when size <= 0). The bool
// reports stream exhaustion.
func readChunk(st *loader.Stream, size int) ([]map[string]interface{}, bool, error) {
	var records []map[string]interface{}
	for size <= 0 || len(records) < size {
		rec, err := st.Next()
		if err == io.EOF {
			return records, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		records = append(records, rec)
	}
	return records, false, nil
}

// readGroup pulls up to groupSize chunks for one worker-pool submission.
func readGroup(st *loader.Stream, chunkSize, groupSize int, nextID *int64) ([]*Chunk, bool, error) {
	var group []*Chunk
	for len(group) < groupSize {
		records, done, err := readChunk(st, chunkSize)
		if err != nil {
			return nil, false, err
		}
		if len(records) > 0 {
			group = append(group, &Chunk{ID: *nextID, Records: records})
			*nextID++
		}
		if done {
			return group, true, nil
		}
	}
	return group, false, nil
}
