package atlstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PartitionKey is the calendar key one partition directory is named after.
type PartitionKey struct {
	Year  int
	Month int
}

// KeyOf computes a granule's partition key from its acquisition time, in UTC.
func KeyOf(g *Granule) PartitionKey {
	t := g.AcquisitionTime.UTC()
	return PartitionKey{Year: t.Year(), Month: int(t.Month())}
}

// Path returns the hive-style directory path for the key, relative to the
// store base. The month is not zero-padded, matching the hive convention of
// writing the value as-is.
func (k PartitionKey) Path() string {
	return fmt.Sprintf("year=%04d/month=%d", k.Year, k.Month)
}

func (k PartitionKey) String() string {
	return k.Path()
}

// before orders keys chronologically.
func (k PartitionKey) before(o PartitionKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// Layout maps partition keys to the directory tree of one store.
type Layout struct {
	// Base is the root directory of the store.
	Base string

	// Ext is the partition file extension without the dot.
	Ext string
}

// DefaultExt is the extension partition files are written with.
const DefaultExt = "parquet"

// NewLayout returns a Layout rooted at base with the default file extension.
func NewLayout(base string) *Layout {
	return &Layout{Base: base, Ext: DefaultExt}
}

// Dir returns the partition directory for a key.
func (l *Layout) Dir(k PartitionKey) string {
	return filepath.Join(l.Base, fmt.Sprintf("year=%04d", k.Year), fmt.Sprintf("month=%d", k.Month))
}

// FilePath returns the partition file path for a key and file index. It is a
// pure function of its inputs: the same (base, key, index) always yields the
// same path.
func (l *Layout) FilePath(k PartitionKey, index int) string {
	return filepath.Join(l.Dir(k), fmt.Sprintf("%d.%s", index, l.Ext))
}

// EnsureDir creates the partition directory chain for a key if it does not
// exist yet and returns it. Calling it again is a no-op.
func (l *Layout) EnsureDir(k PartitionKey) (string, error) {
	dir := l.Dir(k)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating partition directory: %w", err)
	}
	return dir, nil
}

// NextIndex returns the smallest file index not yet present under a key's
// directory, 0 for a partition that does not exist yet. Existing files are
// never reused: new data for an existing key goes into a new index.
func (l *Layout) NextIndex(k PartitionKey) (int, error) {
	entries, err := os.ReadDir(l.Dir(k))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("scanning partition directory: %w", err)
	}

	next := 0
	for _, e := range entries {
		idx, ok := l.parseIndex(e.Name())
		if !ok {
			continue
		}
		if idx >= next {
			next = idx + 1
		}
	}
	return next, nil
}

// Files returns the partition files under a key's directory in index order.
func (l *Layout) Files(k PartitionKey) ([]string, error) {
	entries, err := os.ReadDir(l.Dir(k))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning partition directory: %w", err)
	}

	type indexed struct {
		idx  int
		path string
	}
	var files []indexed
	for _, e := range entries {
		idx, ok := l.parseIndex(e.Name())
		if !ok {
			continue
		}
		files = append(files, indexed{idx: idx, path: filepath.Join(l.Dir(k), e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].idx < files[j].idx })

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

// Partitions walks the base directory and returns every partition key found,
// in chronological order. Directories not matching the year=/month= naming
// are ignored.
func (l *Layout) Partitions() ([]PartitionKey, error) {
	years, err := os.ReadDir(l.Base)
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}

	var keys []PartitionKey
	for _, ye := range years {
		if !ye.IsDir() {
			continue
		}
		year, ok := parseHiveSegment(ye.Name(), "year")
		if !ok {
			continue
		}
		months, err := os.ReadDir(filepath.Join(l.Base, ye.Name()))
		if err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		for _, me := range months {
			if !me.IsDir() {
				continue
			}
			month, ok := parseHiveSegment(me.Name(), "month")
			if !ok {
				continue
			}
			keys = append(keys, PartitionKey{Year: year, Month: month})
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })
	return keys, nil
}

func (l *Layout) parseIndex(name string) (int, bool) {
	base, ok := strings.CutSuffix(name, "."+l.Ext)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(base)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

func parseHiveSegment(name, key string) (int, bool) {
	val, ok := strings.CutPrefix(name, key+"=")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}
