package atlstore

import (
	"fmt"
	"sort"
)

// FieldType enumerates the scalar value types ATL08 fields come in.
type FieldType int

const (
	TypeFloat32 FieldType = iota + 1
	TypeFloat64
	TypeInt32
	TypeInt64
)

func (t FieldType) String() string {
	switch t {
	case TypeFloat32:
		return "float"
	case TypeFloat64:
		return "double"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// goValueMatches reports whether v is the Go representation of t. These are
// the same representations the parquet writer accepts for the corresponding
// physical types.
func goValueMatches(t FieldType, v interface{}) bool {
	switch t {
	case TypeFloat32:
		_, ok := v.(float32)
		return ok
	case TypeFloat64:
		_, ok := v.(float64)
		return ok
	case TypeInt32:
		_, ok := v.(int32)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	default:
		return false
	}
}

// BeamBatch is the columnar result of extracting one beam from one granule:
// a set of equally long scalar columns plus one point per sample. Batches are
// produced by an Extractor and consumed immediately by a Writer; they are
// never persisted on their own.
type BeamBatch struct {
	GranuleID string
	Beam      string

	points  []Point
	columns map[string]*scalarColumn
}

type scalarColumn struct {
	typ    FieldType
	values []interface{}
}

// NewBeamBatch creates an empty batch for the given granule and beam.
func NewBeamBatch(granuleID, beam string) *BeamBatch {
	return &BeamBatch{
		GranuleID: granuleID,
		Beam:      beam,
		columns:   make(map[string]*scalarColumn),
	}
}

// SetGeometry sets the per-sample point column. It determines the batch
// length; every scalar column must match it.
func (b *BeamBatch) SetGeometry(points []Point) {
	b.points = points
}

// AddColumn adds a scalar column. Values must all be the Go representation of
// typ (float32, float64, int32 or int64) and the column must be as long as
// the geometry column.
func (b *BeamBatch) AddColumn(name string, typ FieldType, values []interface{}) error {
	if _, ok := b.columns[name]; ok {
		return fmt.Errorf("batch already has column %s", name)
	}
	if len(values) != len(b.points) {
		return fmt.Errorf("column %s has %d values, batch has %d samples", name, len(values), len(b.points))
	}
	for i, v := range values {
		if !goValueMatches(typ, v) {
			return fmt.Errorf("column %s value %d is %T, want %s", name, i, v, typ)
		}
	}
	b.columns[name] = &scalarColumn{typ: typ, values: values}
	return nil
}

// Len returns the number of samples in the batch.
func (b *BeamBatch) Len() int {
	return len(b.points)
}

// Columns returns the scalar column names in lexical order.
func (b *BeamBatch) Columns() []string {
	names := make([]string, 0, len(b.columns))
	for name := range b.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnType returns the type of a scalar column and whether it exists.
func (b *BeamBatch) ColumnType(name string) (FieldType, bool) {
	col, ok := b.columns[name]
	if !ok {
		return 0, false
	}
	return col.typ, true
}

// Value returns sample i of the named scalar column.
func (b *BeamBatch) Value(name string, i int) interface{} {
	return b.columns[name].values[i]
}

// Geometry returns the point for sample i.
func (b *BeamBatch) Geometry(i int) Point {
	return b.points[i]
}
