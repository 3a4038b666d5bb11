package statemap

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// centeredSquare uses dyadic coordinates so the area centroid is exact.
func centeredSquare(cx, cy float64) orb.Polygon {
	return square(cx-0.25, cy-0.25, 0.5)
}

func labelRow(name string, g orb.Geometry, value *float64) JoinedRow {
	return JoinedRow{Key: RegionKey{ID: "00", Name: name}, Geometry: g, Value: value}
}

func labelNames(p LabelPlacement) []string {
	names := make([]string, len(p.Labels))
	for i, l := range p.Labels {
		names[i] = l.Text
	}
	return names
}

func TestPlaceLabels_MinSeparationWorkedExample(t *testing.T) {
	ds := &JoinedDataset{Rows: []JoinedRow{
		labelRow("A", centeredSquare(0, 0), floatPtr(1)),
		labelRow("B", centeredSquare(0.5, 0), floatPtr(1)),
		labelRow("C", centeredSquare(2.0, 0), floatPtr(1)),
	}}

	got := PlaceLabels(ds, DefaultMinSeparation)
	assert.Equal(t, []string{"A", "C"}, labelNames(got))
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, 0, got.Ineligible)
	assert.Equal(t, orb.Point{0, 0}, got.Labels[0].Anchor)
	assert.Equal(t, orb.Point{2, 0}, got.Labels[1].Anchor)
}

func TestPlaceLabels_ExactSeparationIsAccepted(t *testing.T) {
	ds := &JoinedDataset{Rows: []JoinedRow{
		labelRow("A", centeredSquare(0, 0), floatPtr(1)),
		labelRow("D", centeredSquare(1, 0), floatPtr(1)),
	}}

	got := PlaceLabels(ds, 1.0)
	assert.Equal(t, []string{"A", "D"}, labelNames(got))
}

func TestPlaceLabels_GreedyOrderMatters(t *testing.T) {
	// B first blocks A; no backtracking brings A back.
	ds := &JoinedDataset{Rows: []JoinedRow{
		labelRow("B", centeredSquare(0.5, 0), floatPtr(1)),
		labelRow("A", centeredSquare(0, 0), floatPtr(1)),
		labelRow("C", centeredSquare(2.0, 0), floatPtr(1)),
	}}

	got := PlaceLabels(ds, DefaultMinSeparation)
	assert.Equal(t, []string{"B", "C"}, labelNames(got))
}

func TestPlaceLabels_CentroidOutsideIsExcluded(t *testing.T) {
	twoParts := orb.MultiPolygon{square(0, 0, 1), square(10, 0, 1)}

	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"c shape", cShape()},
		{"two-part multipolygon", twoParts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &JoinedDataset{Rows: []JoinedRow{labelRow("X", tt.geom, floatPtr(0.5))}}
			got := PlaceLabels(ds, DefaultMinSeparation)
			assert.Empty(t, got.Labels)
			assert.Equal(t, 1, got.Ineligible)
		})
	}
}

func TestPlaceLabels_MultiPolygonCentroidInsideOnePart(t *testing.T) {
	// A big part and a tiny far island: centroid stays in the big part.
	mp := orb.MultiPolygon{square(0, 0, 4), square(5, 0, 0.5)}
	ds := &JoinedDataset{Rows: []JoinedRow{labelRow("BIG", mp, floatPtr(1))}}

	got := PlaceLabels(ds, DefaultMinSeparation)
	require.Len(t, got.Labels, 1)
	assert.True(t, got.Labels[0].Anchor[0] < 4)
}

func TestPlaceLabels_Eligibility(t *testing.T) {
	ds := &JoinedDataset{Rows: []JoinedRow{
		labelRow("", centeredSquare(0, 0), floatPtr(1)),
		labelRow("NOVALUE", centeredSquare(10, 0), nil),
		labelRow("NOGEOM", nil, floatPtr(1)),
		labelRow("EMPTY", orb.Polygon{}, floatPtr(1)),
		labelRow("EMPTYMULTI", orb.MultiPolygon{}, floatPtr(1)),
		labelRow("EMPTYPARTS", orb.MultiPolygon{orb.Polygon{}, orb.Polygon{orb.Ring{}}}, floatPtr(1)),
		labelRow("ZERO", centeredSquare(20, 0), floatPtr(0)),
		labelRow("HOLLOWPART", orb.MultiPolygon{centeredSquare(30, 0), orb.Polygon{}}, floatPtr(1)),
		labelRow("EMPTYHOLE", orb.Polygon{centeredSquare(40, 0)[0], orb.Ring{}}, floatPtr(1)),
	}}

	var got LabelPlacement
	require.NotPanics(t, func() { got = PlaceLabels(ds, DefaultMinSeparation) })
	assert.Equal(t, []string{"ZERO", "HOLLOWPART", "EMPTYHOLE"}, labelNames(got), "a zero value is eligible, a null value is not")
	assert.Equal(t, orb.Point{30, 0}, got.Labels[1].Anchor, "empty members are ignored")
	assert.Equal(t, 6, got.Ineligible)
}

func TestPlaceLabels_LoadedMultiPolygonWithEmptyMember(t *testing.T) {
	data := []byte(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ent": 1, "entidad": "AGU"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[0,0],[1,0],[1,1],[0,1],[0,0]]],
       [[[10,0],[11,0],[11,1],[10,1],[10,0]]],
       []
     ]}}
  ]
}`)
	rs, err := ParseRegions(data, "ent", "entidad", DefaultIDWidth)
	require.NoError(t, err)
	attrs := attributesFor(keysOf(rs), "i1", constValue("0.5"))
	opts := DefaultJoinOptions()
	opts.ExpectedRows = 1
	ds, _, err := Join(rs, attrs, "i1", opts)
	require.NoError(t, err)

	var got LabelPlacement
	require.NotPanics(t, func() { got = PlaceLabels(ds, DefaultMinSeparation) })
	// the centroid falls between the two squares
	assert.Empty(t, got.Labels)
	assert.Equal(t, 1, got.Ineligible)
}

func TestPlaceLabels_Deterministic(t *testing.T) {
	regions := gridRegions(32)
	regions.Regions[1].Geometry = square(0.5, 0, 1) // overlaps region 01's neighbourhood
	attrs := attributesFor(keysOf(regions), "i1", constValue("1"))
	ds, _, err := Join(regions, attrs, "i1", DefaultJoinOptions())
	require.NoError(t, err)

	first := PlaceLabels(ds, DefaultMinSeparation)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, PlaceLabels(ds, DefaultMinSeparation))
	}
	assert.Equal(t, 31, len(first.Labels))
	assert.Equal(t, 1, first.Rejected)
}

func TestPlaceLabels_NilDataset(t *testing.T) {
	assert.Empty(t, PlaceLabels(nil, 1).Labels)
}

func TestContainsStrictly_Boundary(t *testing.T) {
	sq := square(0, 0, 2)
	assert.True(t, containsStrictly(sq, orb.Point{1, 1}))
	assert.False(t, containsStrictly(sq, orb.Point{0, 1}), "edge point is not strictly inside")
	assert.False(t, containsStrictly(sq, orb.Point{2, 2}), "vertex is not strictly inside")
	assert.False(t, containsStrictly(sq, orb.Point{3, 1}))
	assert.False(t, containsStrictly(orb.Polygon{}, orb.Point{1, 1}))
	assert.True(t, containsStrictly(orb.MultiPolygon{orb.Polygon{}, sq}, orb.Point{1, 1}))
}
