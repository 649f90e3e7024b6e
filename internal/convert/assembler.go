// Package convert drives chunked conversion of record streams into columnar
// artifacts: batch assembly against an inferred schema, reconciliation against
// the running output schema, and the eager/sequential/parallel strategies.
package convert

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/jsonvalue"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Chunk is a bounded, ordered slice of the record stream. ID defines the
// total order of chunks within one file.
type Chunk struct {
	ID      int64
	Records []map[string]interface{}
}

// Assembler turns chunks into Arrow record batches conforming to one
// FileSchema. It is immutable after construction and safe to share across
// workers.
type Assembler struct {
	fields []*schema.FieldSchema
	types  []arrow.DataType
	pool   memory.Allocator
}

// NewAssembler builds an assembler for the given inferred schema. Column
// order is the schema's lexicographic field order.
func NewAssembler(fs *schema.FileSchema) *Assembler {
	names := fs.Names()
	a := &Assembler{
		fields: make([]*schema.FieldSchema, 0, len(names)),
		types:  make([]arrow.DataType, 0, len(names)),
		pool:   memory.NewGoAllocator(),
	}
	for _, name := range names {
		f := fs.Fields[name]
		a.fields = append(a.fields, f)
		a.types = append(a.types, arrowType(f.Tag))
	}
	return a
}

// Schema returns the target Arrow schema all non-degenerate batches carry.
func (a *Assembler) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(a.fields))
	for i, f := range a.fields {
		fields[i] = arrow.Field{Name: f.Name, Type: a.types[i], Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// arrowType maps a resolved TypeTag onto its materialized Arrow type.
// Object tags are stringified at assembly, so they materialize as strings.
func arrowType(tag *schema.TypeTag) arrow.DataType {
	if tag == nil {
		return arrow.Null
	}
	switch tag.Kind {
	case schema.KindNull:
		return arrow.Null
	case schema.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case schema.KindInt:
		return arrow.PrimitiveTypes.Int64
	case schema.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case schema.KindArray:
		return arrow.ListOf(arrowType(tag.Elem))
	default:
		return arrow.BinaryTypes.String
	}
}

// Assemble builds one record batch from a chunk. Individual cells that cannot
// be coerced degrade to null; a column that is entirely null in this chunk is
// emitted as an explicit Null-typed column for later reconciliation. Only a
// structural failure aborts the whole chunk.
func (a *Assembler) Assemble(chunk *Chunk) (rec arrow.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = strataerrors.Newf(strataerrors.ErrorTypeChunkAssembly,
				"chunk %d could not be assembled: %v", chunk.ID, r)
		}
	}()

	n := len(chunk.Records)
	flat := make([]map[string]interface{}, n)
	for i, r := range chunk.Records {
		flat[i] = jsonvalue.Flatten(r)
	}

	cols := make([]arrow.Array, len(a.fields))
	fields := make([]arrow.Field, len(a.fields))
	for i, f := range a.fields {
		col := a.buildColumn(flat, f.Name, a.types[i])
		cols[i] = col
		fields[i] = arrow.Field{Name: f.Name, Type: col.DataType(), Nullable: true}
	}

	batch := array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(n))
	for _, col := range cols {
		col.Release()
	}
	metrics.ChunksAssembled.Inc()
	return batch, nil
}

// buildColumn materializes one column. All-null columns are represented with
// the Null type rather than guessed into the target type.
func (a *Assembler) buildColumn(flat []map[string]interface{}, name string, dt arrow.DataType) arrow.Array {
	allNull := true
	for _, row := range flat {
		if v, ok := row[name]; ok && v != nil {
			allNull = false
			break
		}
	}
	if allNull {
		return array.NewNull(len(flat))
	}

	b := array.NewBuilder(a.pool, dt)
	defer b.Release()
	for _, row := range flat {
		appendCoerced(b, row[name])
	}
	return b.NewArray()
}

// appendCoerced coerces one value to the builder's type, degrading to null
// when no cast applies.
func appendCoerced(b array.Builder, v interface{}) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		if bv, ok := v.(bool); ok {
			bld.Append(bv)
			return
		}
	case *array.Int64Builder:
		if iv, ok := asInt64(v); ok {
			bld.Append(iv)
			return
		}
	case *array.Float64Builder:
		if fv, ok := asFloat64(v); ok {
			bld.Append(fv)
			return
		}
	case *array.StringBuilder:
		if s, ok := stringify(v); ok {
			bld.Append(s)
			return
		}
	case *array.ListBuilder:
		if elems, ok := v.([]interface{}); ok {
			bld.Append(true)
			vb := bld.ValueBuilder()
			for _, e := range elems {
				appendCoerced(vb, e)
			}
			return
		}
	case *array.NullBuilder:
		bld.AppendNull()
		return
	}
	metrics.CoercionFailures.Inc()
	b.AppendNull()
}

// asInt64 accepts integral values and numeric-looking strings.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case gojson.Number:
		return parseInt(string(n))
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		return parseInt(n)
	}
	return 0, false
}

func parseInt(s string) (int64, bool) {
	if iv, err := strconv.ParseInt(s, 10, 64); err == nil {
		return iv, true
	}
	// Whole-valued decimals like "3.0" still land in an int column.
	if fv, err := strconv.ParseFloat(s, 64); err == nil && fv == float64(int64(fv)) {
		return int64(fv), true
	}
	return 0, false
}

// asFloat64 accepts any numeric value and numeric-looking strings.
func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case gojson.Number:
		fv, err := n.Float64()
		return fv, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		fv, err := strconv.ParseFloat(n, 64)
		return fv, err == nil
	}
	return 0, false
}

// stringify renders any value for a string column. Arrays and objects are
// embedded as JSON text.
func stringify(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case gojson.Number:
		return string(s), true
	case bool:
		return strconv.FormatBool(s), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case []interface{}, map[string]interface{}:
		data, err := jsonutil.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
