package atlstore

import (
	"encoding/json"
	"fmt"

	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"
)

// Column names the writer owns in addition to the scalar fields derived from
// the template: the beam each sample came from, and its WKB point geometry.
const (
	beamColumn     = "beam"
	geometryColumn = "geometry"
)

// Schema is the canonical column contract of one store-creation run: the
// scalar fields derived from a template granule, their metadata, and the
// geometry encoding. Every batch appended to a partition file must conform to
// it exactly.
type Schema struct {
	// Fields are the scalar fields in template order.
	Fields []FieldInfo

	// CRS identifies the coordinate reference system of the geometry
	// column.
	CRS string

	def    *parquetschema.SchemaDefinition
	byName map[string]FieldInfo
}

// ResolveSchema derives the canonical output schema from a template granule.
// The template must expose at least one beam group and one scalar field;
// otherwise a *SchemaError is returned. Resolution is pure: the handle is
// inspected, not consumed, so the same handle can afterwards be extracted
// normally.
func ResolveSchema(template GranuleHandle) (*Schema, error) {
	if len(template.Beams()) == 0 {
		return nil, &SchemaError{Reason: "template granule has no beam groups"}
	}

	fields := template.Fields()
	if len(fields) == 0 {
		return nil, &SchemaError{Reason: "template granule exposes no scalar fields"}
	}

	byName := make(map[string]FieldInfo, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, &SchemaError{Reason: "template granule has an unnamed field"}
		}
		if f.Name == beamColumn || f.Name == geometryColumn {
			return nil, &SchemaError{Reason: fmt.Sprintf("field name %q collides with a store column", f.Name)}
		}
		if _, ok := byName[f.Name]; ok {
			return nil, &SchemaError{Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		if _, err := scalarColumnDef(f); err != nil {
			return nil, &SchemaError{Reason: err.Error()}
		}
		byName[f.Name] = f
	}

	def, err := buildDefinition(fields)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	return &Schema{
		Fields: fields,
		CRS:    DefaultCRS,
		def:    def,
		byName: byName,
	}, nil
}

// Definition returns the parquet schema definition for partition files.
func (s *Schema) Definition() *parquetschema.SchemaDefinition {
	return s.def
}

// Field returns the metadata of a scalar field and whether it exists.
func (s *Schema) Field(name string) (FieldInfo, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Metadata returns the key/value metadata embedded in every partition file:
// GeoParquet geometry metadata plus the per-field units, fill values and
// descriptions. Files are self-describing; readers need no external registry.
func (s *Schema) Metadata() map[string]string {
	type fieldMeta struct {
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		Units       string   `json:"units,omitempty"`
		FillValue   *float64 `json:"fill_value,omitempty"`
		Description string   `json:"description,omitempty"`
	}

	metas := make([]fieldMeta, 0, len(s.Fields))
	for _, f := range s.Fields {
		metas = append(metas, fieldMeta{
			Name:        f.Name,
			Type:        f.Type.String(),
			Units:       f.Units,
			FillValue:   f.FillValue,
			Description: f.Description,
		})
	}

	data, err := json.Marshal(metas)
	if err != nil {
		panic(err) // plain structs, cannot fail
	}

	return map[string]string{
		MetaKeyGeo:    geoMetadataJSON(),
		MetaKeyFields: string(data),
	}
}

// Equal reports whether two schemas are structurally identical: same fields
// in the same order, same types and fill values, same CRS. Units and
// descriptions are informational and do not participate.
func (s *Schema) Equal(o *Schema) bool {
	if s.CRS != o.CRS || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range s.Fields {
		g := o.Fields[i]
		if f.Name != g.Name || f.Type != g.Type {
			return false
		}
		if (f.FillValue == nil) != (g.FillValue == nil) {
			return false
		}
		if f.FillValue != nil && *f.FillValue != *g.FillValue {
			return false
		}
	}
	return true
}

// Conforms checks a batch against the schema: the batch must carry exactly
// the schema's scalar fields with matching types. A nil return means the
// batch may be appended.
func (s *Schema) Conforms(b *BeamBatch) *ConformanceError {
	var cerr ConformanceError

	for _, f := range s.Fields {
		typ, ok := b.ColumnType(f.Name)
		if !ok {
			cerr.Missing = append(cerr.Missing, f.Name)
			continue
		}
		if typ != f.Type && cerr.Field == "" {
			cerr.Field = f.Name
			cerr.Want = f.Type
			cerr.Got = typ
		}
	}
	for _, name := range b.Columns() {
		if _, ok := s.byName[name]; !ok {
			cerr.Extra = append(cerr.Extra, name)
		}
	}

	if len(cerr.Missing) > 0 || len(cerr.Extra) > 0 || cerr.Field != "" {
		cerr.GranuleID = b.GranuleID
		cerr.Beam = b.Beam
		return &cerr
	}
	return nil
}

func buildDefinition(fields []FieldInfo) (*parquetschema.SchemaDefinition, error) {
	children := []*parquetschema.ColumnDefinition{
		stringColumnDef(beamColumn),
		{
			SchemaElement: &parquet.SchemaElement{
				Name:           geometryColumn,
				Type:           parquet.TypePtr(parquet.Type_BYTE_ARRAY),
				RepetitionType: parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_REQUIRED),
			},
		},
	}

	for _, f := range fields {
		col, err := scalarColumnDef(f)
		if err != nil {
			return nil, err
		}
		children = append(children, col)
	}

	def := &parquetschema.SchemaDefinition{
		RootColumn: &parquetschema.ColumnDefinition{
			SchemaElement: &parquet.SchemaElement{
				Name: "atl08",
			},
			Children: children,
		},
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("generated schema is invalid: %w", err)
	}
	return def, nil
}

func stringColumnDef(name string) *parquetschema.ColumnDefinition {
	col := &parquetschema.ColumnDefinition{
		SchemaElement: &parquet.SchemaElement{
			Name:           name,
			Type:           parquet.TypePtr(parquet.Type_BYTE_ARRAY),
			RepetitionType: parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_REQUIRED),
			ConvertedType:  parquet.ConvertedTypePtr(parquet.ConvertedType_UTF8),
			LogicalType:    parquet.NewLogicalType(),
		},
	}
	col.SchemaElement.LogicalType.STRING = &parquet.StringType{}
	return col
}

// scalarColumnDef maps a source field to an OPTIONAL parquet column: fill
// values are written as nulls, so every scalar column must be nullable.
func scalarColumnDef(f FieldInfo) (*parquetschema.ColumnDefinition, error) {
	col := &parquetschema.ColumnDefinition{
		SchemaElement: &parquet.SchemaElement{
			Name:           f.Name,
			RepetitionType: parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_OPTIONAL),
		},
	}

	switch f.Type {
	case TypeFloat32:
		col.SchemaElement.Type = parquet.TypePtr(parquet.Type_FLOAT)
	case TypeFloat64:
		col.SchemaElement.Type = parquet.TypePtr(parquet.Type_DOUBLE)
	case TypeInt32:
		col.SchemaElement.Type = parquet.TypePtr(parquet.Type_INT32)
		col.SchemaElement.ConvertedType = parquet.ConvertedTypePtr(parquet.ConvertedType_INT_32)
		col.SchemaElement.LogicalType = parquet.NewLogicalType()
		col.SchemaElement.LogicalType.INTEGER = &parquet.IntType{BitWidth: 32, IsSigned: true}
	case TypeInt64:
		col.SchemaElement.Type = parquet.TypePtr(parquet.Type_INT64)
		col.SchemaElement.ConvertedType = parquet.ConvertedTypePtr(parquet.ConvertedType_INT_64)
		col.SchemaElement.LogicalType = parquet.NewLogicalType()
		col.SchemaElement.LogicalType.INTEGER = &parquet.IntType{BitWidth: 64, IsSigned: true}
	default:
		return nil, fmt.Errorf("field %s has unsupported type %s", f.Name, f.Type)
	}

	return col, nil
}
