package atlstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
)

// WriterOptions configure a Writer.
type WriterOptions struct {
	// SkipUnreadable makes the writer skip a granule whose bytes cannot be
	// read instead of aborting the whole partition. A granule is only
	// skippable before any of its rows reached the output; a read failure
	// after that always aborts, since rows already appended cannot be
	// taken back. Skipped granule IDs are reported in PartitionResult.
	SkipUnreadable bool

	// Compression selects the parquet compression codec. Defaults to
	// snappy.
	Compression parquet.CompressionCodec

	// Creator is recorded in the parquet footer. Defaults to "atlstore".
	Creator string
}

// PartitionResult reports what one WritePartition call did.
type PartitionResult struct {
	// Path of the finalized partition file.
	Path string

	// Granules processed into the file.
	Granules int

	// Skipped lists granules passed over under SkipUnreadable.
	Skipped []string

	// EmptyBeams counts beams that yielded no samples and were skipped.
	EmptyBeams int

	// Rows written in total.
	Rows int64
}

// Writer converts granules into partition files. One Writer may be reused
// across partitions; each WritePartition call owns its output file
// exclusively for the call's lifetime.
type Writer struct {
	ex   Extractor
	opts WriterOptions
}

// NewWriter creates a Writer on top of an extractor. The extractor is
// serialized through the process-wide token automatically.
func NewWriter(ex Extractor, opts *WriterOptions) *Writer {
	w := &Writer{ex: NewSerialExtractor(ex)}
	if opts != nil {
		w.opts = *opts
	}
	if w.opts.Compression == 0 {
		w.opts.Compression = parquet.CompressionCodec_SNAPPY
	}
	if w.opts.Creator == "" {
		w.opts.Creator = "atlstore"
	}
	return w
}

// WritePartition appends every beam of every granule into a single parquet
// file at outputPath. The granule list must be non-empty, pre-sorted by
// acquisition time, and must lie entirely within one partition key; a list
// spanning keys is rejected before anything is written, so records can never
// leak across partitions.
//
// The file is written to a temporary sibling path and renamed into place only
// after a fully successful run. On any abort the temporary file is removed
// and outputPath is left untouched, so readers never observe a partial file.
// An existing outputPath is never overwritten (*PartitionExistsError).
func (w *Writer) WritePartition(ctx context.Context, granules []*Granule, schema *Schema, outputPath string) (*PartitionResult, error) {
	if len(granules) == 0 {
		return nil, errors.New("empty granule list")
	}
	if schema == nil {
		return nil, errors.New("nil schema")
	}

	if _, err := singlePartitionKey(granules); err != nil {
		return nil, err
	}

	if _, err := os.Stat(outputPath); err == nil {
		return nil, &PartitionExistsError{Path: outputPath}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking output path: %w", err)
	}

	tmpPath := outputPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating partition file: %w", err)
	}

	res, err := w.writeAll(ctx, granules, schema, f)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing partition file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalizing partition file: %w", err)
	}

	res.Path = outputPath
	return res, nil
}

// WriteNextPartition derives the partition key shared by all granules,
// ensures the partition directory exists, and writes into the next free file
// index under it. The granules are checked to span a single key before any
// directory is created.
func (w *Writer) WriteNextPartition(ctx context.Context, granules []*Granule, schema *Schema, layout *Layout) (*PartitionResult, error) {
	if len(granules) == 0 {
		return nil, errors.New("empty granule list")
	}

	key, err := singlePartitionKey(granules)
	if err != nil {
		return nil, err
	}
	if _, err := layout.EnsureDir(key); err != nil {
		return nil, err
	}
	index, err := layout.NextIndex(key)
	if err != nil {
		return nil, err
	}

	return w.WritePartition(ctx, granules, schema, layout.FilePath(key, index))
}

// singlePartitionKey returns the partition key every granule in the list maps
// to, or an error naming the first granule that falls outside it.
func singlePartitionKey(granules []*Granule) (PartitionKey, error) {
	key := KeyOf(granules[0])
	for _, g := range granules[1:] {
		if k := KeyOf(g); k != key {
			return PartitionKey{}, fmt.Errorf("granule %s belongs to partition %s, not %s", g.ID, k, key)
		}
	}
	return key, nil
}

func (w *Writer) writeAll(ctx context.Context, granules []*Granule, schema *Schema, f io.Writer) (*PartitionResult, error) {
	fw := goparquet.NewFileWriter(f,
		goparquet.WithSchemaDefinition(schema.Definition()),
		goparquet.WithMetaData(schema.Metadata()),
		goparquet.WithCompressionCodec(w.opts.Compression),
		goparquet.WithCreator(w.opts.Creator),
	)

	res := &PartitionResult{}

	for _, g := range granules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.writeGranule(ctx, g, schema, fw, res); err != nil {
			var rerr *GranuleReadError
			if errors.As(err, &rerr) && w.opts.SkipUnreadable && rerr.rowsWritten == 0 {
				res.Skipped = append(res.Skipped, g.ID)
				continue
			}
			return nil, err
		}
		res.Granules++
	}

	if res.Rows == 0 {
		return nil, fmt.Errorf("no rows extracted from %d granules, refusing to write an empty partition", len(granules))
	}

	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("writing parquet footer: %w", err)
	}
	return res, nil
}

// writeGranule streams one granule's beams into the open file. One row group
// is flushed per non-empty beam batch, so downstream row-group statistics
// line up with beams.
func (w *Writer) writeGranule(ctx context.Context, g *Granule, schema *Schema, fw *goparquet.FileWriter, res *PartitionResult) error {
	h, err := w.ex.Open(ctx, g)
	if err != nil {
		return &GranuleReadError{GranuleID: g.ID, Err: err}
	}
	defer h.Close()

	beams := h.Beams()

	var granuleRows int64
	for beamIdx := 0; ; beamIdx++ {
		batch, err := h.NextBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			rerr := &GranuleReadError{GranuleID: g.ID, Err: err, rowsWritten: granuleRows}
			if beamIdx < len(beams) {
				rerr.Beam = beams[beamIdx]
			}
			return rerr
		}

		if batch.Len() == 0 {
			res.EmptyBeams++
			continue
		}

		if cerr := schema.Conforms(batch); cerr != nil {
			return cerr
		}

		for i := 0; i < batch.Len(); i++ {
			if err := fw.AddData(rowData(schema, batch, i)); err != nil {
				return fmt.Errorf("granule %s beam %s row %d: %w", g.ID, batch.Beam, i, err)
			}
		}
		if err := fw.FlushRowGroup(); err != nil {
			return fmt.Errorf("granule %s beam %s: flushing row group: %w", g.ID, batch.Beam, err)
		}

		granuleRows += int64(batch.Len())
		res.Rows += int64(batch.Len())
	}

	return nil
}

// rowData materializes one sample as the row map the parquet writer consumes.
// Samples holding a field's fill value become nulls; the sentinel itself is
// never persisted.
func rowData(schema *Schema, batch *BeamBatch, i int) map[string]interface{} {
	row := map[string]interface{}{
		beamColumn:     []byte(batch.Beam),
		geometryColumn: batch.Geometry(i).WKB(),
	}

	for _, field := range schema.Fields {
		v := batch.Value(field.Name, i)
		if isFill(field, v) {
			continue
		}
		row[field.Name] = v
	}
	return row
}

func isFill(field FieldInfo, v interface{}) bool {
	if field.FillValue == nil {
		return false
	}
	// integer columns compare in float64 space: fill values are declared
	// as float64 whatever the column type, and converting a float-range
	// sentinel to an integer is out of range
	fill := *field.FillValue
	switch tv := v.(type) {
	case float32:
		return tv == float32(fill)
	case float64:
		return tv == fill
	case int32:
		return float64(tv) == fill
	case int64:
		return float64(tv) == fill
	default:
		return false
	}
}
