// Package atlstore converts remote ATL08 laser-altimetry granules into a
// hive-partitioned GeoParquet store that query engines can prune by calendar
// attributes.
//
// The pipeline has four parts. ResolveSchema derives the canonical column
// schema once from a representative template granule. An Extractor, supplied
// by the caller and wrapping the native ATL08 reader, streams per-beam record
// batches out of each granule. A Writer appends every beam of every granule
// belonging to one time partition into a single parquet file, enforcing schema
// conformance across granules and finalizing the file atomically. A Layout
// maps acquisition times to year=Y/month=M directories, and Store reads the
// resulting tree back with partition pruning and column projection.
//
// The native reader backing an Extractor is not reentrant. Wrap any Extractor
// with NewSerialExtractor (Writer does this itself) so that at most one call
// into it is in flight process-wide.
package atlstore
