package atlstore

import (
	"fmt"
	"strings"
)

// SchemaError indicates that a template granule lacked the structure needed
// to derive a schema from it. It is fatal to the run; a different template
// must be supplied.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "schema derivation failed: " + e.Reason
}

// GranuleReadError indicates that a granule's bytes could not be read or
// parsed. Beam is empty when the failure happened while opening the granule.
type GranuleReadError struct {
	GranuleID string
	Beam      string
	Err       error

	// rowsWritten counts rows from this granule that already reached the
	// output before the failure; the writer's skip policy only applies
	// when it is zero.
	rowsWritten int64
}

func (e *GranuleReadError) Error() string {
	if e.Beam != "" {
		return fmt.Sprintf("reading granule %s beam %s: %v", e.GranuleID, e.Beam, e.Err)
	}
	return fmt.Sprintf("reading granule %s: %v", e.GranuleID, e.Err)
}

func (e *GranuleReadError) Unwrap() error { return e.Err }

// ConformanceError indicates that an extracted batch does not match the
// resolved schema. It always aborts the in-progress partition write.
type ConformanceError struct {
	GranuleID string
	Beam      string
	Missing   []string // schema fields absent from the batch
	Extra     []string // batch columns absent from the schema
	Field     string   // field with a type mismatch, if any
	Want, Got FieldType
}

func (e *ConformanceError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing fields "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected fields "+strings.Join(e.Extra, ", "))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %s has type %s, schema wants %s", e.Field, e.Got, e.Want))
	}
	if len(parts) == 0 {
		parts = append(parts, "batch does not conform to schema")
	}
	return fmt.Sprintf("granule %s beam %s: %s", e.GranuleID, e.Beam, strings.Join(parts, "; "))
}

// PartitionExistsError indicates that the target partition file is already
// present. Existing files are never overwritten; the caller picks the next
// index or aborts.
type PartitionExistsError struct {
	Path string
}

func (e *PartitionExistsError) Error() string {
	return fmt.Sprintf("partition file %s already exists", e.Path)
}
