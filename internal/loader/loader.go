// Package loader turns raw JSON documents into lazy record streams. It
// detects the document dialect (NDJSON, top-level array, wrapped container,
// single object, relaxed syntax), normalizes element shapes, and picks
// streaming or eager parsing by file size so memory stays bounded on large
// inputs.
package loader

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Dialect labels how a document's records were located.
type Dialect string

const (
	// DialectNDJSON is one JSON value per line
	DialectNDJSON Dialect = "ndjson"
	// DialectArray is a top-level JSON array
	DialectArray Dialect = "array"
	// DialectWrapped is an object with records under a conventional container key
	DialectWrapped Dialect = "wrapped"
	// DialectGeoJSON is a FeatureCollection unwrapped to per-feature properties
	DialectGeoJSON Dialect = "geojson"
	// DialectSingle is one bare object forming a single record
	DialectSingle Dialect = "single"
	// DialectEager marks documents parsed whole through the relaxed chain
	DialectEager Dialect = "eager"
)

// containerKeys is probed in order on wrapped documents; the first key holding
// a non-empty array supplies the record stream.
var containerKeys = []string{"data", "results", "items", "records", "rows", "entries", "features"}

// Stream is a one-pass sequence of normalized records. Next returns io.EOF
// after the last record. Unparseable lines are skipped, counted and logged.
type Stream struct {
	dialect Dialect
	next    func() (map[string]interface{}, error)
	skipped int64
	closer  io.Closer
}

var _ schema.RecordSource = (*Stream)(nil)

// Next yields the next record, or io.EOF when the stream is exhausted.
func (s *Stream) Next() (map[string]interface{}, error) { return s.next() }

// Dialect reports the detected document dialect.
func (s *Stream) Dialect() Dialect { return s.dialect }

// Skipped reports how many malformed lines or elements were dropped so far.
func (s *Stream) Skipped() int64 { return s.skipped }

// Close releases the underlying file handle, if any.
func (s *Stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open produces a record stream for path. Files at or below the eager
// threshold are parsed whole through the strict → relaxed → line-split chain;
// larger files are streamed. A large file whose dialect cannot be streamed
// falls back to eager parsing only below the hard streaming cap; above it the
// load fails rather than risk unbounded memory.
func Open(path string, cfg config.ConversionConfig) (*Stream, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to stat input file")
	}
	size := info.Size()

	if size <= cfg.EagerThresholdBytes {
		return openEager(path)
	}

	st, err := openStreaming(path)
	if err == nil {
		logger.Debug("streaming input",
			zap.String("file", path),
			zap.String("dialect", string(st.dialect)),
			zap.Int64("bytes", size))
		return st, nil
	}

	if size > cfg.HardStreamingBytes {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeStreamingUnsupported,
			"file is too large for the in-memory fallback and its dialect cannot be streamed")
	}
	logger.Warn("streaming failed, falling back to eager parse",
		zap.String("file", path), zap.Error(err))
	return openEager(path)
}

// openProbe opens the (possibly compressed) input for a fresh read pass.
// Streaming detection re-opens the file once per probe instead of seeking so
// compressed inputs behave the same as plain ones.
func openProbe(path string) (io.ReadCloser, error) {
	return compression.OpenReader(path)
}
