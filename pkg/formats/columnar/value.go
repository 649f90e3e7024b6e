package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ColumnValue extracts the i-th cell of a column as a plain Go value.
// Nulls come back as nil, lists as []interface{}. Used by the row-oriented
// writers and by output verification.
func ColumnValue(col arrow.Array, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(i)
	case *array.Int64:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	case *array.String:
		return c.Value(i)
	case *array.Null:
		return nil
	case *array.List:
		start, end := c.ValueOffsets(i)
		values := c.ListValues()
		out := make([]interface{}, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, ColumnValue(values, int(j)))
		}
		return out
	default:
		return nil
	}
}
