// Package columnar provides the Avro OCF implementation
package columnar

import (
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// avroWriter implements Writer for Avro object container files
type avroWriter struct {
	schema         *arrow.Schema
	ocfWriter      *goavro.OCFWriter
	fieldNames     []string
	recordsWritten int64
}

func newAvroWriter(w io.Writer, config *WriterConfig) (*avroWriter, error) {
	avroSchema, names, err := avroSchemaJSON(config.Schema)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to create Avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to create Avro writer")
	}
	return &avroWriter{schema: config.Schema, ocfWriter: ocf, fieldNames: names}, nil
}

func (aw *avroWriter) WriteBatch(rec arrow.Record) error {
	if err := checkSchema(aw.schema, rec); err != nil {
		return err
	}
	rows := make([]interface{}, 0, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		native := make(map[string]interface{}, len(aw.fieldNames))
		for col, field := range aw.schema.Fields() {
			native[aw.fieldNames[col]] = avroNative(ColumnValue(rec.Column(col), i), field.Type)
		}
		rows = append(rows, native)
	}
	if err := aw.ocfWriter.Append(rows); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to append Avro block")
	}
	aw.recordsWritten += rec.NumRows()
	return nil
}

func (aw *avroWriter) Flush() error { return nil }

// Close is a no-op: OCF blocks are complete after each Append.
func (aw *avroWriter) Close() error { return nil }

func (aw *avroWriter) Format() Format { return Avro }

func (aw *avroWriter) RecordsWritten() int64 { return aw.recordsWritten }

// avroSchemaJSON renders an Avro record schema for an Arrow schema and
// returns the sanitized Avro field name for each column, in column order.
func avroSchemaJSON(schema *arrow.Schema) (string, []string, error) {
	fields := make([]map[string]interface{}, 0, schema.NumFields())
	names := make([]string, 0, schema.NumFields())
	seen := make(map[string]int)
	for _, f := range schema.Fields() {
		name := avroName(f.Name, seen)
		names = append(names, name)
		fields = append(fields, map[string]interface{}{
			"name":    name,
			"type":    avroType(f.Type),
			"default": nil,
		})
	}
	doc := map[string]interface{}{
		"type":   "record",
		"name":   "strata_record",
		"fields": fields,
	}
	data, err := jsonutil.Marshal(doc)
	if err != nil {
		return "", nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return string(data), names, nil
}

// avroName maps a flattened field name onto the Avro name grammar
// ([A-Za-z_][A-Za-z0-9_]*), deduplicating collisions.
func avroName(name string, seen map[string]int) string {
	var b strings.Builder
	for i, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "_"
	}
	seen[out]++
	if n := seen[out]; n > 1 {
		out = out + "_" + strconv.Itoa(n)
	}
	return out
}

func avroType(dt arrow.DataType) interface{} {
	switch dt.ID() {
	case arrow.NULL:
		return "null"
	case arrow.BOOL:
		return []interface{}{"null", "boolean"}
	case arrow.INT64:
		return []interface{}{"null", "long"}
	case arrow.FLOAT64:
		return []interface{}{"null", "double"}
	case arrow.LIST:
		elem := dt.(*arrow.ListType).Elem()
		return []interface{}{"null", map[string]interface{}{
			"type":  "array",
			"items": avroType(elem),
		}}
	default:
		return []interface{}{"null", "string"}
	}
}

// avroNative wraps a plain value into goavro's union representation.
func avroNative(v interface{}, dt arrow.DataType) interface{} {
	if v == nil {
		return nil
	}
	switch dt.ID() {
	case arrow.NULL:
		return nil
	case arrow.BOOL:
		return map[string]interface{}{"boolean": v}
	case arrow.INT64:
		return map[string]interface{}{"long": v}
	case arrow.FLOAT64:
		return map[string]interface{}{"double": v}
	case arrow.LIST:
		elems, _ := v.([]interface{})
		elemType := dt.(*arrow.ListType).Elem()
		items := make([]interface{}, 0, len(elems))
		for _, e := range elems {
			items = append(items, avroNative(e, elemType))
		}
		return map[string]interface{}{"array": items}
	default:
		return map[string]interface{}{"string": v}
	}
}
