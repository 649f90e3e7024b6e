// Package columnar provides the Parquet implementation
package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	schema         *arrow.Schema
	fileWriter     *pqarrow.FileWriter
	recordsWritten int64
}

func newParquetWriter(w io.Writer, config *WriterConfig) (*parquetWriter, error) {
	pool := memory.NewGoAllocator()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCompression(config.Compression)),
		parquet.WithAllocator(pool),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(pool),
	)

	fw, err := pqarrow.NewFileWriter(config.Schema, w, props, arrowProps)
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to create Parquet writer")
	}
	return &parquetWriter{schema: config.Schema, fileWriter: fw}, nil
}

func (pw *parquetWriter) WriteBatch(rec arrow.Record) error {
	if err := checkSchema(pw.schema, rec); err != nil {
		return err
	}
	if err := pw.fileWriter.WriteBuffered(rec); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to write Parquet row group")
	}
	pw.recordsWritten += rec.NumRows()
	return nil
}

func (pw *parquetWriter) Flush() error {
	// Row groups are flushed on Close; WriteBuffered already bounds memory.
	return nil
}

func (pw *parquetWriter) Close() error {
	if err := pw.fileWriter.Close(); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to close Parquet writer")
	}
	return nil
}

func (pw *parquetWriter) Format() Format { return Parquet }

func (pw *parquetWriter) RecordsWritten() int64 { return pw.recordsWritten }

func parquetCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "brotli":
		return compress.Codecs.Brotli
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}
