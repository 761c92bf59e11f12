package atlstore

import (
	"context"
	"sync"
)

// FieldInfo describes one scalar field of the source product: its name, value
// type, and the metadata downstream consumers need to interpret it. FillValue
// is the sentinel the product stores where no valid measurement exists; the
// writer turns such samples into parquet nulls rather than persisting the
// sentinel.
type FieldInfo struct {
	Name        string
	Type        FieldType
	Units       string
	FillValue   *float64
	Description string
}

// GranuleHandle is an open granule being extracted. NextBatch yields one
// BeamBatch per beam present in the granule, in a stable, deterministic order,
// and returns io.EOF when all beams have been produced. The sequence is
// restartable only by reopening the granule. A beam with no valid samples in
// the search region yields an empty batch, not an error.
//
// Handles are not safe for concurrent use, and the native reader behind them
// tolerates only one in-flight call process-wide; see NewSerialExtractor.
type GranuleHandle interface {
	// Beams lists the beam group names present in the granule.
	Beams() []string

	// Fields lists the scalar fields this granule exposes per beam.
	Fields() []FieldInfo

	// NextBatch extracts the next beam. io.EOF signals the end of the
	// sequence; any other error means the granule's bytes could not be
	// read and the handle is no longer usable.
	NextBatch() (*BeamBatch, error)

	// Close releases the handle. The batch sequence cannot be resumed
	// afterwards.
	Close() error
}

// Extractor opens granules for extraction. Implementations wrap the native
// ATL08 reader and whatever remote byte access it needs; retry of transient
// network failures belongs in the implementation, not in this package.
type Extractor interface {
	Open(ctx context.Context, g *Granule) (GranuleHandle, error)
}

// nativeMu is the process-wide execution token for the native reader. The
// reader is not reentrant: two concurrent calls into it corrupt results or
// deadlock, no matter which granules they touch.
var nativeMu sync.Mutex

// SerialExtractor wraps an Extractor so every call into it, and into every
// handle it opens, holds the global token for the duration of that single
// call. The token is not held between calls, so independent stages (e.g.
// prefetching the next granule's bytes) can still overlap with extraction.
type SerialExtractor struct {
	inner Extractor
}

// NewSerialExtractor wraps ex. Wrapping an already-serialized extractor
// returns it unchanged.
func NewSerialExtractor(ex Extractor) *SerialExtractor {
	if s, ok := ex.(*SerialExtractor); ok {
		return s
	}
	return &SerialExtractor{inner: ex}
}

func (s *SerialExtractor) Open(ctx context.Context, g *Granule) (GranuleHandle, error) {
	nativeMu.Lock()
	h, err := s.inner.Open(ctx, g)
	nativeMu.Unlock()
	if err != nil {
		return nil, err
	}
	return &serialHandle{inner: h}, nil
}

type serialHandle struct {
	inner GranuleHandle
}

func (h *serialHandle) Beams() []string {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	return h.inner.Beams()
}

func (h *serialHandle) Fields() []FieldInfo {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	return h.inner.Fields()
}

func (h *serialHandle) NextBatch() (*BeamBatch, error) {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	return h.inner.NextBatch()
}

func (h *serialHandle) Close() error {
	nativeMu.Lock()
	defer nativeMu.Unlock()
	return h.inner.Close()
}
