// Package columnar writes Arrow record batches out as columnar artifacts
// (Parquet, Arrow IPC, Avro OCF) or row-oriented CSV. All writers consume
// schema-identical batches; the schema is fixed at writer creation.
package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Format represents an output format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is the Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is Avro object container file format
	Avro Format = "avro"
	// CSV is row-oriented CSV, kept for interoperability
	CSV Format = "csv"
)

// ParseFormat validates a format name from configuration or flags.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case Parquet, Arrow, Avro, CSV:
		return Format(s), nil
	default:
		return "", strataerrors.Newf(strataerrors.ErrorTypeConfig, "unsupported output format %q", s)
	}
}

// Extension returns the conventional file extension for a format.
func Extension(f Format) string {
	switch f {
	case Parquet:
		return ".parquet"
	case Arrow:
		return ".arrow"
	case Avro:
		return ".avro"
	case CSV:
		return ".csv"
	default:
		return "." + string(f)
	}
}

// Writer appends schema-identical record batches to one output artifact.
// Writers are not safe for concurrent use; the conversion pipeline has a
// single writer owner.
type Writer interface {
	// WriteBatch appends one record batch. The batch schema must equal the
	// schema the writer was created with.
	WriteBatch(rec arrow.Record) error
	// Flush forces buffered data out
	Flush() error
	// Close finalizes the artifact; the file is unreadable until Close
	Close() error
	// Format returns the output format
	Format() Format
	// RecordsWritten returns rows written so far
	RecordsWritten() int64
}

// WriterConfig configures columnar writers
type WriterConfig struct {
	Format      Format
	Schema      *arrow.Schema
	Compression string
}

// NewWriter creates a writer for the configured format over w.
func NewWriter(w io.Writer, config *WriterConfig) (Writer, error) {
	if config == nil || config.Schema == nil {
		return nil, strataerrors.New(strataerrors.ErrorTypeConfig, "writer schema is required")
	}
	switch config.Format {
	case Parquet:
		return newParquetWriter(w, config)
	case Arrow:
		return newArrowWriter(w, config)
	case Avro:
		return newAvroWriter(w, config)
	case CSV:
		return newCSVWriter(w, config)
	default:
		return nil, strataerrors.Newf(strataerrors.ErrorTypeConfig, "unsupported output format %q", config.Format)
	}
}

func checkSchema(want *arrow.Schema, rec arrow.Record) error {
	if !want.Equal(rec.Schema()) {
		return strataerrors.New(strataerrors.ErrorTypeSchemaDrift, "batch schema does not match writer schema")
	}
	return nil
}
