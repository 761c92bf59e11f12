package atlstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointWKBRoundTrip(t *testing.T) {
	tests := map[string]Point{
		"plains":    {Lon: -105.1178, Lat: 40.0274},
		"meridian":  {Lon: 0, Lat: 51.4779},
		"antipodal": {Lon: 179.999999, Lat: -89.999999},
		"origin":    {Lon: 0, Lat: 0},
	}

	for testName, p := range tests {
		t.Run(testName, func(t *testing.T) {
			buf := p.WKB()
			require.Len(t, buf, 21)

			got, err := PointFromWKB(buf)
			require.NoError(t, err)
			assert.Equal(t, p, got, "coordinates must survive encoding bit-exactly")
		})
	}
}

func TestPointFromWKBErrors(t *testing.T) {
	valid := Point{Lon: 1, Lat: 2}.WKB()

	tests := map[string]func() []byte{
		"short":       func() []byte { return valid[:20] },
		"long":        func() []byte { return append(append([]byte{}, valid...), 0) },
		"big-endian":  func() []byte { b := append([]byte{}, valid...); b[0] = 0; return b },
		"not-a-point": func() []byte { b := append([]byte{}, valid...); b[1] = 2; return b },
		"empty":       func() []byte { return nil },
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			_, err := PointFromWKB(tt())
			assert.Error(t, err)
		})
	}
}

func TestGeoMetadataJSON(t *testing.T) {
	var meta struct {
		Version       string `json:"version"`
		PrimaryColumn string `json:"primary_column"`
		Columns       map[string]struct {
			Encoding      string   `json:"encoding"`
			GeometryTypes []string `json:"geometry_types"`
		} `json:"columns"`
	}

	require.NoError(t, json.Unmarshal([]byte(geoMetadataJSON()), &meta))
	assert.Equal(t, "1.0.0", meta.Version)
	assert.Equal(t, "geometry", meta.PrimaryColumn)
	require.Contains(t, meta.Columns, "geometry")
	assert.Equal(t, "WKB", meta.Columns["geometry"].Encoding)
	assert.Equal(t, []string{"Point"}, meta.Columns["geometry"].GeometryTypes)
}
