package atlstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Point is one geodetic sample location, degrees east and north.
type Point struct {
	Lon float64
	Lat float64
}

const (
	wkbByteOrderLE  = 1
	wkbGeomPoint    = 1
	wkbPointByteLen = 21
)

// WKB returns the point as little-endian ISO well-known binary, the encoding
// the store uses for its geometry column.
func (p Point) WKB() []byte {
	buf := make([]byte, wkbPointByteLen)
	buf[0] = wkbByteOrderLE
	binary.LittleEndian.PutUint32(buf[1:5], wkbGeomPoint)
	binary.LittleEndian.PutUint64(buf[5:13], math.Float64bits(p.Lon))
	binary.LittleEndian.PutUint64(buf[13:21], math.Float64bits(p.Lat))
	return buf
}

// PointFromWKB decodes a little-endian WKB point as produced by Point.WKB.
func PointFromWKB(b []byte) (Point, error) {
	if len(b) != wkbPointByteLen {
		return Point{}, fmt.Errorf("wkb point must be %d bytes, got %d", wkbPointByteLen, len(b))
	}
	if b[0] != wkbByteOrderLE {
		return Point{}, fmt.Errorf("unsupported wkb byte order %d", b[0])
	}
	if typ := binary.LittleEndian.Uint32(b[1:5]); typ != wkbGeomPoint {
		return Point{}, fmt.Errorf("unsupported wkb geometry type %d", typ)
	}
	return Point{
		Lon: math.Float64frombits(binary.LittleEndian.Uint64(b[5:13])),
		Lat: math.Float64frombits(binary.LittleEndian.Uint64(b[13:21])),
	}, nil
}

// Key/value metadata keys embedded in every partition file. MetaKeyGeo holds
// GeoParquet file metadata so geospatial readers discover the geometry column
// without an external registry; MetaKeyFields holds the per-field units, fill
// values and descriptions carried over from the source product.
const (
	MetaKeyGeo    = "geo"
	MetaKeyFields = "atl:fields"
)

// DefaultCRS is the coordinate reference system of ATL08 geolocation,
// longitude/latitude on WGS 84.
const DefaultCRS = "OGC:CRS84"

type geoColumnMeta struct {
	Encoding      string   `json:"encoding"`
	GeometryTypes []string `json:"geometry_types"`
	CRS           *string  `json:"crs"`
}

type geoFileMeta struct {
	Version       string                   `json:"version"`
	PrimaryColumn string                   `json:"primary_column"`
	Columns       map[string]geoColumnMeta `json:"columns"`
}

// geoMetadataJSON renders GeoParquet 1.0.0 file metadata for the geometry
// column. A nil crs entry means OGC:CRS84 per the GeoParquet spec, which is
// the only CRS this store writes.
func geoMetadataJSON() string {
	meta := geoFileMeta{
		Version:       "1.0.0",
		PrimaryColumn: geometryColumn,
		Columns: map[string]geoColumnMeta{
			geometryColumn: {
				Encoding:      "WKB",
				GeometryTypes: []string{"Point"},
				CRS:           nil,
			},
		},
	}

	data, err := json.Marshal(meta)
	if err != nil {
		panic(err) // static structure, cannot fail
	}
	return string(data)
}
