package convert

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
)

// Normalizer reconciles assembled batches against the running output schema,
// which is fixed verbatim by the first non-empty batch written for a file.
type Normalizer struct {
	target *arrow.Schema
	pool   memory.Allocator
}

// NewNormalizer fixes the running output schema.
func NewNormalizer(target *arrow.Schema) *Normalizer {
	return &Normalizer{target: target, pool: memory.NewGoAllocator()}
}

// Schema returns the running output schema.
func (n *Normalizer) Schema() *arrow.Schema { return n.target }

// Normalize returns a batch whose schema equals the running output schema
// exactly. Columns are passed through, cast, or null-filled; rows are never
// dropped. The input batch is not released.
func (n *Normalizer) Normalize(rec arrow.Record) (arrow.Record, error) {
	if n.target.Equal(rec.Schema()) {
		rec.Retain()
		return rec, nil
	}

	rows := int(rec.NumRows())
	cols := make([]arrow.Array, n.target.NumFields())
	for i, field := range n.target.Fields() {
		cols[i] = n.normalizeColumn(rec, field, rows)
	}

	out := array.NewRecord(n.target, cols, int64(rows))
	for _, col := range cols {
		col.Release()
	}
	return out, nil
}

// normalizeColumn applies the reconciliation rules for one target field, in
// priority order: identical type, null-element list rewrite, safe cast,
// all-null fallback.
func (n *Normalizer) normalizeColumn(rec arrow.Record, field arrow.Field, rows int) arrow.Array {
	idx := rec.Schema().FieldIndices(field.Name)
	if len(idx) == 0 {
		return n.nullColumn(field.Type, rows)
	}
	col := rec.Column(idx[0])

	if arrow.TypeEqual(col.DataType(), field.Type) {
		col.Retain()
		return col
	}

	if out := n.rewriteNullLists(col, field.Type); out != nil {
		return out
	}
	if out := n.safeCast(col, field.Type, rows); out != nil {
		return out
	}

	logger.Warn("column type cannot be reconciled to output schema, null-filling",
		zap.String("field", field.Name),
		zap.String("have", col.DataType().String()),
		zap.String("want", field.Type.String()))
	metrics.SchemaDriftRepairs.Inc()
	return n.nullColumn(field.Type, rows)
}

// rewriteNullLists handles a list column whose element type is Null against a
// list target with a concrete element type. A list of nulls carries no usable
// values, so every row becomes an empty list of the target element type:
// present, typed, never a null cell.
func (n *Normalizer) rewriteNullLists(col arrow.Array, target arrow.DataType) arrow.Array {
	src, ok := col.(*array.List)
	if !ok {
		return nil
	}
	targetList, ok := target.(*arrow.ListType)
	if !ok {
		return nil
	}
	if src.DataType().(*arrow.ListType).Elem().ID() != arrow.NULL || targetList.Elem().ID() == arrow.NULL {
		return nil
	}

	b := array.NewBuilder(n.pool, targetList).(*array.ListBuilder)
	defer b.Release()
	for i := 0; i < src.Len(); i++ {
		b.Append(true)
	}
	return b.NewArray()
}

// safeCast covers the value-preserving conversions: an all-null column widens
// to any type, integers widen to floats, and scalars render into strings.
func (n *Normalizer) safeCast(col arrow.Array, target arrow.DataType, rows int) arrow.Array {
	if col.DataType().ID() == arrow.NULL {
		return n.nullColumn(target, rows)
	}

	switch target.ID() {
	case arrow.FLOAT64:
		src, ok := col.(*array.Int64)
		if !ok {
			return nil
		}
		b := array.NewFloat64Builder(n.pool)
		defer b.Release()
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(float64(src.Value(i)))
			}
		}
		return b.NewArray()
	case arrow.STRING:
		b := array.NewStringBuilder(n.pool)
		defer b.Release()
		for i := 0; i < col.Len(); i++ {
			s, ok := castToString(col, i)
			if !ok {
				return nil
			}
			if s == nil {
				b.AppendNull()
			} else {
				b.Append(*s)
			}
		}
		return b.NewArray()
	default:
		return nil
	}
}

func castToString(col arrow.Array, i int) (*string, bool) {
	if col.IsNull(i) {
		return nil, true
	}
	var s string
	switch c := col.(type) {
	case *array.Int64:
		s = strconv.FormatInt(c.Value(i), 10)
	case *array.Float64:
		s = strconv.FormatFloat(c.Value(i), 'g', -1, 64)
	case *array.Boolean:
		s = strconv.FormatBool(c.Value(i))
	default:
		return nil, false
	}
	return &s, true
}

func (n *Normalizer) nullColumn(dt arrow.DataType, rows int) arrow.Array {
	return array.MakeArrayOfNull(n.pool, dt, rows)
}
