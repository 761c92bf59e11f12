package atlstore

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// atl08Fill is the large float sentinel ATL08 stores where no valid
// measurement exists.
const atl08Fill = 3.4028235e38

func testFields() []FieldInfo {
	fill := atl08Fill
	return []FieldInfo{
		{Name: "h_canopy", Type: TypeFloat32, Units: "m", FillValue: &fill, Description: "98% height of canopy photons"},
		{Name: "h_te_best_fit", Type: TypeFloat64, Units: "m", FillValue: &fill},
		{Name: "n_ca_photons", Type: TypeInt32},
	}
}

var testBeamNames = []string{"gt1l", "gt1r", "gt2l", "gt2r", "gt3l", "gt3r"}

type fakeBeam struct {
	name   string
	points []Point
	cols   map[string][]interface{}
}

// makeBeam generates n deterministic samples for one beam. seed offsets the
// values so different granules and beams produce distinct data.
func makeBeam(name string, n int, seed float64) fakeBeam {
	points := make([]Point, n)
	canopy := make([]interface{}, n)
	terrain := make([]interface{}, n)
	photons := make([]interface{}, n)
	for i := 0; i < n; i++ {
		points[i] = Point{Lon: -105.0 + seed + float64(i)*0.01, Lat: 40.0 + float64(i)*0.01}
		canopy[i] = float32(12.5 + seed + float64(i))
		terrain[i] = 1800.25 + seed + float64(i)
		photons[i] = int32(40 + i)
	}
	return fakeBeam{
		name:   name,
		points: points,
		cols: map[string][]interface{}{
			"h_canopy":      canopy,
			"h_te_best_fit": terrain,
			"n_ca_photons":  photons,
		},
	}
}

// makeGranuleData builds six beams of n samples each.
func makeGranuleData(n int, seed float64) *fakeGranuleData {
	data := &fakeGranuleData{fields: testFields(), failAtBeam: -1}
	for i, name := range testBeamNames {
		data.beams = append(data.beams, makeBeam(name, n, seed+float64(i)))
	}
	return data
}

type fakeGranuleData struct {
	beams  []fakeBeam
	fields []FieldInfo

	openErr    error
	failAtBeam int // NextBatch fails when reaching this beam index; -1 never
}

type fakeExtractor struct {
	granules map[string]*fakeGranuleData
}

func (e *fakeExtractor) Open(_ context.Context, g *Granule) (GranuleHandle, error) {
	data, ok := e.granules[g.ID]
	if !ok {
		return nil, fmt.Errorf("unknown granule %s", g.ID)
	}
	if data.openErr != nil {
		return nil, data.openErr
	}
	return &fakeHandle{granuleID: g.ID, data: data}, nil
}

type fakeHandle struct {
	granuleID string
	data      *fakeGranuleData
	next      int
	closed    bool
}

func (h *fakeHandle) Beams() []string {
	names := make([]string, 0, len(h.data.beams))
	for _, b := range h.data.beams {
		names = append(names, b.name)
	}
	return names
}

func (h *fakeHandle) Fields() []FieldInfo {
	return h.data.fields
}

func (h *fakeHandle) NextBatch() (*BeamBatch, error) {
	if h.closed {
		return nil, fmt.Errorf("handle is closed")
	}
	if h.next == h.data.failAtBeam {
		return nil, fmt.Errorf("simulated read failure")
	}
	if h.next >= len(h.data.beams) {
		return nil, io.EOF
	}

	beam := h.data.beams[h.next]
	h.next++

	batch := NewBeamBatch(h.granuleID, beam.name)
	batch.SetGeometry(beam.points)

	names := make([]string, 0, len(beam.cols))
	for name := range beam.cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		typ := columnTypeOf(h.data.fields, name)
		if err := batch.AddColumn(name, typ, beam.cols[name]); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func columnTypeOf(fields []FieldInfo, name string) FieldType {
	for _, f := range fields {
		if f.Name == name {
			return f.Type
		}
	}
	// columns injected by tests beyond the field list are floats
	return TypeFloat32
}

func mustGranule(id, begin string) *Granule {
	g, err := ParseGranule(id, begin, "s3://nsidc/"+id+".h5")
	if err != nil {
		panic(err)
	}
	return g
}
