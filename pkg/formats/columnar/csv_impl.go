// Package columnar provides the CSV implementation
package columnar

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// csvWriter implements Writer for CSV output. Nulls are empty cells and list
// values are embedded as JSON text.
type csvWriter struct {
	schema         *arrow.Schema
	writer         *csv.Writer
	recordsWritten int64
}

func newCSVWriter(w io.Writer, config *WriterConfig) (*csvWriter, error) {
	cw := &csvWriter{schema: config.Schema, writer: csv.NewWriter(w)}

	header := make([]string, config.Schema.NumFields())
	for i, f := range config.Schema.Fields() {
		header[i] = f.Name
	}
	if err := cw.writer.Write(header); err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to write CSV header")
	}
	return cw, nil
}

func (cw *csvWriter) WriteBatch(rec arrow.Record) error {
	if err := checkSchema(cw.schema, rec); err != nil {
		return err
	}
	row := make([]string, rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		for col := 0; col < int(rec.NumCols()); col++ {
			cell, err := csvCell(ColumnValue(rec.Column(col), i))
			if err != nil {
				return err
			}
			row[col] = cell
		}
		if err := cw.writer.Write(row); err != nil {
			return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to write CSV row")
		}
	}
	cw.recordsWritten += rec.NumRows()
	return nil
}

func (cw *csvWriter) Flush() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to flush CSV output")
	}
	return nil
}

func (cw *csvWriter) Close() error { return cw.Flush() }

func (cw *csvWriter) Format() Format { return CSV }

func (cw *csvWriter) RecordsWritten() int64 { return cw.recordsWritten }

func csvCell(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case string:
		return val, nil
	default:
		data, err := jsonutil.Marshal(val)
		if err != nil {
			return "", strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to encode CSV cell")
		}
		return string(data), nil
	}
}
