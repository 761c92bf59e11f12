package atlstore

import (
	"context"
	"fmt"
	"io"
	"os"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquetschema"
)

// Op is a partition-filter comparison operator.
type Op int

const (
	OpEq Op = iota
	OpGtEq
	OpLtEq
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGtEq:
		return ">="
	case OpLtEq:
		return "<="
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Filter is a (column, operator, value) predicate over the partition key
// columns "year" and "month". Filters prune whole partitions; they are never
// evaluated against file contents.
type Filter struct {
	Column string
	Op     Op
	Value  int
}

// matches evaluates the filter against one key.
func (f Filter) matches(k PartitionKey) bool {
	var v int
	switch f.Column {
	case "year":
		v = k.Year
	case "month":
		v = k.Month
	}
	switch f.Op {
	case OpEq:
		return v == f.Value
	case OpGtEq:
		return v >= f.Value
	case OpLtEq:
		return v <= f.Value
	default:
		return false
	}
}

// Store reads a partitioned store back. Opening is cheap; partition discovery
// and file reads happen per query.
type Store struct {
	layout *Layout
}

// OpenStore opens the store rooted at base.
func OpenStore(base string) (*Store, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening store: %s is not a directory", base)
	}
	return &Store{layout: NewLayout(base)}, nil
}

// Partitions lists the store's partition keys in chronological order.
func (s *Store) Partitions() ([]PartitionKey, error) {
	return s.layout.Partitions()
}

// Files lists the partition files under one key in index order.
func (s *Store) Files(k PartitionKey) ([]string, error) {
	return s.layout.Files(k)
}

// Schema returns the parquet schema definition and key/value metadata of the
// store, taken from its first partition file. Files are self-describing and
// all files of a store share one schema, so one file suffices.
func (s *Store) Schema() (*parquetschema.SchemaDefinition, map[string]string, error) {
	keys, err := s.layout.Partitions()
	if err != nil {
		return nil, nil, err
	}
	for _, k := range keys {
		files, err := s.layout.Files(k)
		if err != nil {
			return nil, nil, err
		}
		if len(files) == 0 {
			continue
		}

		f, err := os.Open(files[0])
		if err != nil {
			return nil, nil, fmt.Errorf("opening partition file: %w", err)
		}
		defer f.Close()

		r, err := goparquet.NewFileReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("reading partition file %s: %w", files[0], err)
		}
		return r.GetSchemaDefinition(), r.MetaData(), nil
	}
	return nil, nil, fmt.Errorf("store has no partition files")
}

// Query scans the partitions matching every filter, in key and file-index
// order, and returns an iterator over their rows. columns projects the result
// to the named columns; nil means all. The key columns "year" and "month" may
// be projected too and are filled in from the file's directory path.
func (s *Store) Query(ctx context.Context, columns []string, filters ...Filter) (*ResultSet, error) {
	for _, f := range filters {
		if f.Column != "year" && f.Column != "month" {
			return nil, fmt.Errorf("filter column %q is not a partition key column", f.Column)
		}
	}

	keys, err := s.layout.Partitions()
	if err != nil {
		return nil, err
	}

	var parts []partFile
	for _, k := range keys {
		pruned := false
		for _, f := range filters {
			if !f.matches(k) {
				pruned = true
				break
			}
		}
		if pruned {
			continue
		}
		files, err := s.layout.Files(k)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			parts = append(parts, partFile{path: path, key: k})
		}
	}

	var fileCols []string
	injectYear, injectMonth := false, false
	for _, c := range columns {
		switch c {
		case "year":
			injectYear = true
		case "month":
			injectMonth = true
		default:
			fileCols = append(fileCols, c)
		}
	}

	return &ResultSet{
		ctx:         ctx,
		parts:       parts,
		columns:     columns,
		fileCols:    fileCols,
		injectYear:  injectYear,
		injectMonth: injectMonth,
	}, nil
}

type partFile struct {
	path string
	key  PartitionKey
}

// ResultSet iterates over the rows of all partition files matched by a query.
type ResultSet struct {
	ctx         context.Context
	parts       []partFile
	columns     []string
	fileCols    []string
	injectYear  bool
	injectMonth bool

	next    int
	cur     *goparquet.FileReader
	curFile *os.File
	curKey  PartitionKey
	err     error
}

// Next returns the following row, or io.EOF after the last row of the last
// file. Rows are maps from column name to value, restricted to the projected
// columns. A read failure is latched: once Next has returned an error other
// than io.EOF it keeps returning it, so callers looping until Next fails
// always terminate.
func (r *ResultSet) Next() (map[string]interface{}, error) {
	if r.err != nil {
		return nil, r.err
	}

	for {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			return nil, err
		}

		if r.cur == nil {
			if r.next >= len(r.parts) {
				return nil, io.EOF
			}
			if err := r.open(r.parts[r.next]); err != nil {
				r.err = err
				return nil, err
			}
			r.next++
		}

		row, err := r.cur.NextRow()
		if err == io.EOF {
			r.closeCurrent()
			continue
		}
		if err != nil {
			r.err = fmt.Errorf("reading %s: %w", r.parts[r.next-1].path, err)
			return nil, r.err
		}

		if r.injectYear {
			row["year"] = int32(r.curKey.Year)
		}
		if r.injectMonth {
			row["month"] = int32(r.curKey.Month)
		}
		if len(r.columns) > 0 {
			projected := make(map[string]interface{}, len(r.columns))
			for _, c := range r.columns {
				if v, ok := row[c]; ok {
					projected[c] = v
				}
			}
			row = projected
		}
		return row, nil
	}
}

// ReadAll drains the result set and closes it.
func (r *ResultSet) ReadAll() ([]map[string]interface{}, error) {
	defer r.Close()

	var rows []map[string]interface{}
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// Close releases the currently open file, if any. It is safe to call more
// than once.
func (r *ResultSet) Close() error {
	r.closeCurrent()
	r.next = len(r.parts)
	return nil
}

func (r *ResultSet) open(p partFile) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("opening partition file: %w", err)
	}

	fr, err := goparquet.NewFileReader(f, r.fileCols...)
	if err != nil {
		f.Close()
		return fmt.Errorf("reading %s: %w", p.path, err)
	}

	r.cur = fr
	r.curFile = f
	r.curKey = p.key
	return nil
}

func (r *ResultSet) closeCurrent() {
	if r.curFile != nil {
		r.curFile.Close()
	}
	r.cur = nil
	r.curFile = nil
}
