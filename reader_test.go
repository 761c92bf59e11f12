package atlstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestStore writes a store with two partitions: 180 rows under
// 2021/11 and 60 rows under 2021/12.
func buildTestStore(t *testing.T) (*Layout, *Schema) {
	t.Helper()

	granules, ex := novemberGranules()
	ex.granules["g4"] = makeGranuleData(10, 300)
	december := []*Granule{mustGranule("g4", "2021-12-03T00:00:00Z")}

	schema := resolveTestSchema(t, ex, "g1")
	layout := NewLayout(t.TempDir())
	w := NewWriter(ex, nil)

	_, err := w.WriteNextPartition(context.Background(), granules, schema, layout)
	require.NoError(t, err)
	_, err = w.WriteNextPartition(context.Background(), december, schema, layout)
	require.NoError(t, err)

	return layout, schema
}

func TestStoreRoundTrip(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	rs, err := store.Query(context.Background(), nil)
	require.NoError(t, err)
	rows, err := rs.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 240)

	beams := map[string]int{}
	for _, row := range rows {
		beam, ok := row["beam"].([]byte)
		require.True(t, ok)
		beams[string(beam)]++

		geom, ok := row["geometry"].([]byte)
		require.True(t, ok)
		p, err := PointFromWKB(geom)
		require.NoError(t, err)
		assert.InDelta(t, 40.0, p.Lat, 1.0)

		require.IsType(t, float32(0), row["h_canopy"])
		require.IsType(t, float64(0), row["h_te_best_fit"])
		require.IsType(t, int32(0), row["n_ca_photons"])
	}
	// four granules contribute ten samples per beam
	for _, name := range testBeamNames {
		assert.Equal(t, 40, beams[name])
	}
}

func TestStoreRoundTripValues(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	rs, err := store.Query(context.Background(), []string{"beam", "h_te_best_fit"},
		Filter{Column: "month", Op: OpEq, Value: 12})
	require.NoError(t, err)
	rows, err := rs.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 60)

	// December data was generated with seed 300; beam gt1l offsets it by 0,
	// so its terrain heights are exactly 1800.25+300+i.
	got := map[float64]bool{}
	for _, row := range rows {
		if string(row["beam"].([]byte)) == "gt1l" {
			got[row["h_te_best_fit"].(float64)] = true
		}
	}
	require.Len(t, got, 10)
	for i := 0; i < 10; i++ {
		assert.Contains(t, got, 1800.25+300+float64(i))
	}
}

func TestStorePruning(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	tests := map[string]struct {
		Filters []Filter
		Rows    int
	}{
		"november": {
			Filters: []Filter{
				{Column: "year", Op: OpEq, Value: 2021},
				{Column: "month", Op: OpEq, Value: 11},
			},
			Rows: 180,
		},
		"december-onwards": {
			Filters: []Filter{{Column: "month", Op: OpGtEq, Value: 12}},
			Rows:    60,
		},
		"up-to-november": {
			Filters: []Filter{{Column: "month", Op: OpLtEq, Value: 11}},
			Rows:    180,
		},
		"no-match-year": {
			Filters: []Filter{{Column: "year", Op: OpEq, Value: 2019}},
			Rows:    0,
		},
		"no-filters": {
			Rows: 240,
		},
	}

	for testName, tt := range tests {
		t.Run(testName, func(t *testing.T) {
			rs, err := store.Query(context.Background(), []string{"month"}, tt.Filters...)
			require.NoError(t, err)
			rows, err := rs.ReadAll()
			require.NoError(t, err)
			assert.Len(t, rows, tt.Rows)

			for _, f := range tt.Filters {
				if f.Column != "month" || f.Op != OpEq {
					continue
				}
				for _, row := range rows {
					assert.Equal(t, int32(f.Value), row["month"], "no row may leak from another partition")
				}
			}
		})
	}
}

func TestStoreProjection(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	rs, err := store.Query(context.Background(), []string{"h_canopy", "year", "month"},
		Filter{Column: "month", Op: OpEq, Value: 11})
	require.NoError(t, err)
	rows, err := rs.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 180)

	for _, row := range rows {
		assert.Equal(t, int32(2021), row["year"])
		assert.Equal(t, int32(11), row["month"])
		assert.NotContains(t, row, "beam")
		assert.NotContains(t, row, "geometry")
		assert.NotContains(t, row, "h_te_best_fit")
	}
}

func TestStoreQueryRejectsNonKeyFilter(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	_, err = store.Query(context.Background(), nil, Filter{Column: "h_canopy", Op: OpGtEq, Value: 3})
	assert.Error(t, err)
}

func TestStoreSchema(t *testing.T) {
	layout, schema := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	def, meta, err := store.Schema()
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, schema.Definition().String(), def.String())
	assert.Contains(t, meta, MetaKeyGeo)
	assert.Contains(t, meta, MetaKeyFields)
}

func TestStorePartitionsAndFiles(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	keys, err := store.Partitions()
	require.NoError(t, err)
	assert.Equal(t, []PartitionKey{{Year: 2021, Month: 11}, {Year: 2021, Month: 12}}, keys)

	files, err := store.Files(keys[0])
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, layout.FilePath(keys[0], 0), files[0])
}

func TestStoreOpenErrors(t *testing.T) {
	_, err := OpenStore("/does/not/exist")
	assert.Error(t, err)
}

func TestResultSetUnreadableFileTerminates(t *testing.T) {
	layout := NewLayout(t.TempDir())
	key := PartitionKey{Year: 2021, Month: 11}

	dir, err := layout.EnsureDir(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.parquet"), []byte("not a parquet file"), 0644))

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	rs, err := store.Query(context.Background(), nil)
	require.NoError(t, err)
	defer rs.Close()

	_, err = rs.Next()
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)

	// the failure must be latched, not retried forever
	_, again := rs.Next()
	assert.Equal(t, err, again)
}

func TestResultSetNextAfterClose(t *testing.T) {
	layout, _ := buildTestStore(t)

	store, err := OpenStore(layout.Base)
	require.NoError(t, err)

	rs, err := store.Query(context.Background(), nil)
	require.NoError(t, err)

	_, err = rs.Next()
	require.NoError(t, err)

	require.NoError(t, rs.Close())
	_, err = rs.Next()
	assert.Equal(t, io.EOF, err)
}
