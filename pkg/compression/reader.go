// Package compression transparently decompresses input files based on their
// extension. It supports the algorithms commonly seen on exported JSON dumps
// (gzip, zstd, snappy framing, lz4) plus raw passthrough.
package compression

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Algorithm identifies a supported decompression codec.
type Algorithm string

const (
	// None passes bytes through untouched
	None Algorithm = "none"
	// Gzip handles .gz files
	Gzip Algorithm = "gzip"
	// Zstd handles .zst files
	Zstd Algorithm = "zstd"
	// Snappy handles framed .sz files
	Snappy Algorithm = "snappy"
	// LZ4 handles .lz4 files
	LZ4 Algorithm = "lz4"
)

// Detect maps a file path to its compression algorithm by extension.
func Detect(path string) Algorithm {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".sz", ".snappy":
		return Snappy
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// TrimExt strips a recognized compression extension so dialect detection can
// look at the logical file name (data.ndjson.gz -> data.ndjson).
func TrimExt(path string) string {
	if Detect(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

type reader struct {
	io.Reader
	closers []io.Closer
}

func (r *reader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenReader opens path and wraps it in the decompressor its extension calls
// for. The returned ReadCloser closes both the decompressor and the file.
func OpenReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to open input file")
	}
	rc, err := WrapReader(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	return rc, nil
}

// WrapReader layers the decompressor for algo over an already-open stream.
func WrapReader(f io.ReadCloser, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return f, nil
	case Gzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to open gzip stream")
		}
		return &reader{Reader: gz, closers: []io.Closer{f, gz}}, nil
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to open zstd stream")
		}
		zrc := zr.IOReadCloser()
		return &reader{Reader: zrc, closers: []io.Closer{f, zrc}}, nil
	case Snappy:
		return &reader{Reader: snappy.NewReader(f), closers: []io.Closer{f}}, nil
	case LZ4:
		return &reader{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return nil, strataerrors.Newf(strataerrors.ErrorTypeConfig, "unsupported compression algorithm %q", algo)
	}
}
