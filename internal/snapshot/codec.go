package snapshot

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/ipc"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/rotisserie/eris"

	"github.com/draftroom/stats-cli/internal/model"
	"github.com/draftroom/stats-cli/internal/registry"
)

// Field pairs a snapshot column with its semantic type. The engine builds
// the field list from the contract schema plus the resolution columns.
type Field struct {
	Name string
	Type registry.Type
}

func arrowType(t registry.Type) arrow.DataType {
	switch t {
	case registry.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case registry.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case registry.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case registry.TypeDate:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// Encode serializes rows into Arrow IPC stream bytes with one record batch.
// Column order follows fields; values incompatible with the declared type
// surface as errors (the quality gate runs first, so this indicates a
// programming error, not bad provider data).
func Encode(fields []Field, rows []model.Row) ([]byte, error) {
	arrowFields := make([]arrow.Field, len(fields))
	for i, f := range fields {
		arrowFields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	schema := arrow.NewSchema(arrowFields, nil)

	mem := memory.DefaultAllocator
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, row := range rows {
		for i, f := range fields {
			if err := appendValue(b.Field(i), f, row[f.Name]); err != nil {
				return nil, err
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, eris.Wrap(err, "snapshot: write arrow record")
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "snapshot: close arrow writer")
	}
	return buf.Bytes(), nil
}

func appendValue(fb array.Builder, f Field, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	switch builder := fb.(type) {
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			builder.Append(s)
		} else {
			builder.Append(fmt.Sprint(v))
		}
	case *array.Int64Builder:
		n, ok := asInt64(v)
		if !ok {
			return eris.Errorf("snapshot: column %q: cannot encode %T as int", f.Name, v)
		}
		builder.Append(n)
	case *array.Float64Builder:
		x, ok := asFloat64(v)
		if !ok {
			return eris.Errorf("snapshot: column %q: cannot encode %T as float", f.Name, v)
		}
		builder.Append(x)
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return eris.Errorf("snapshot: column %q: cannot encode %T as bool", f.Name, v)
		}
		builder.Append(bv)
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return eris.Errorf("snapshot: column %q: cannot encode %T as date", f.Name, v)
		}
		builder.Append(arrow.Date32FromTime(t.UTC()))
	default:
		return eris.Errorf("snapshot: column %q: unsupported builder %T", f.Name, fb)
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Decode reads Arrow IPC stream bytes back into columns and rows. Used by
// the LKG path, the sampling commands, and tests; the transformation layer
// reads the files directly.
func Decode(data []byte) ([]string, []model.Row, error) {
	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, nil, eris.Wrap(err, "snapshot: open arrow reader")
	}
	defer rdr.Release()

	schema := rdr.Schema()
	columns := make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		columns[i] = f.Name
	}

	var rows []model.Row
	for rdr.Next() {
		rec := rdr.Record()
		n := int(rec.NumRows())
		for j := 0; j < n; j++ {
			row := make(model.Row, len(columns))
			for i, name := range columns {
				v, err := columnValue(rec.Column(i), j)
				if err != nil {
					return nil, nil, eris.Wrapf(err, "snapshot: decode column %q", name)
				}
				row[name] = v
			}
			rows = append(rows, row)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "snapshot: read arrow records")
	}
	return columns, rows, nil
}

func columnValue(col arrow.Array, i int) (any, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Date32:
		return time.Unix(int64(a.Value(i))*86400, 0).UTC(), nil
	default:
		return nil, eris.Errorf("unsupported arrow array %T", col)
	}
}
