package atlstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/araddon/dateparse"
)

// BoundingBox is the geodetic extent reported by the catalog for a granule.
// It is carried for upstream search-time filtering only; the pipeline itself
// never consults it.
type BoundingBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// Granule describes one remote source file, i.e. one satellite overpass.
// Granules come out of an external catalog search and are treated as
// immutable by the pipeline.
type Granule struct {
	// ID is the stable identifier assigned by the data archive.
	ID string

	// AcquisitionTime is the begin-time of the overpass, always UTC. It
	// determines the granule's partition key.
	AcquisitionTime time.Time

	// Locators are the access URIs for the granule's bytes, most preferred
	// first. They are opaque to this package and interpreted by the
	// Extractor.
	Locators []string

	// BBox is the bounding geometry from the catalog, if any.
	BBox *BoundingBox
}

// ParseGranule builds a Granule from catalog search output. The begin time is
// an ISO 8601 timestamp, but catalogs drift in sub-second precision and zone
// suffix across product versions, so parsing is lenient. The result is
// normalized to UTC.
func ParseGranule(id, beginTime string, locators ...string) (*Granule, error) {
	if id == "" {
		return nil, fmt.Errorf("granule has no identifier")
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("granule %s has no access locators", id)
	}

	ts, err := dateparse.ParseIn(beginTime, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("granule %s has invalid begin time %q: %w", id, beginTime, err)
	}

	return &Granule{
		ID:              id,
		AcquisitionTime: ts.UTC(),
		Locators:        locators,
	}, nil
}

// SortGranulesByTime sorts granules by acquisition time, ties broken by ID.
// WritePartition requires its input pre-sorted; callers that receive catalog
// results in an unknown order should run them through here first.
func SortGranulesByTime(granules []*Granule) {
	sort.Slice(granules, func(i, j int) bool {
		if !granules[i].AcquisitionTime.Equal(granules[j].AcquisitionTime) {
			return granules[i].AcquisitionTime.Before(granules[j].AcquisitionTime)
		}
		return granules[i].ID < granules[j].ID
	})
}
