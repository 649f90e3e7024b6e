// Package columnar provides the Arrow IPC file implementation
package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// arrowWriter implements Writer for the Arrow IPC file format
type arrowWriter struct {
	schema         *arrow.Schema
	fileWriter     *ipc.FileWriter
	recordsWritten int64
}

func newArrowWriter(w io.Writer, config *WriterConfig) (*arrowWriter, error) {
	fw, err := ipc.NewFileWriter(w,
		ipc.WithSchema(config.Schema),
		ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to create Arrow writer")
	}
	return &arrowWriter{schema: config.Schema, fileWriter: fw}, nil
}

func (aw *arrowWriter) WriteBatch(rec arrow.Record) error {
	if err := checkSchema(aw.schema, rec); err != nil {
		return err
	}
	if err := aw.fileWriter.Write(rec); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to write Arrow batch")
	}
	aw.recordsWritten += rec.NumRows()
	return nil
}

func (aw *arrowWriter) Flush() error { return nil }

func (aw *arrowWriter) Close() error {
	if err := aw.fileWriter.Close(); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to close Arrow writer")
	}
	return nil
}

func (aw *arrowWriter) Format() Format { return Arrow }

func (aw *arrowWriter) RecordsWritten() int64 { return aw.recordsWritten }
