package statemap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegions_NumericAndStringIDs(t *testing.T) {
	data := []byte(`{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ent": 9, "entidad": "cdmx "},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"ent": "1", "entidad": "Agu"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,0],[3,0],[3,1],[2,1],[2,0]]]]}},
    {"type": "Feature", "properties": {"ent": "32", "entidad": "ZAC"},
     "geometry": {"type": "Point", "coordinates": [5,5]}}
  ]
}`)

	rs, err := ParseRegions(data, "ent", "entidad", DefaultIDWidth)
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	assert.Equal(t, RegionKey{ID: "09", Name: "CDMX"}, rs.Regions[0].Key)
	assert.IsType(t, orb.Polygon{}, rs.Regions[0].Geometry)

	assert.Equal(t, RegionKey{ID: "01", Name: "AGU"}, rs.Regions[1].Key)
	assert.IsType(t, orb.MultiPolygon{}, rs.Regions[1].Geometry)

	assert.Equal(t, "32", rs.Regions[2].Key.ID)
	assert.Nil(t, rs.Regions[2].Geometry, "points are not areal")
}

func TestParseRegions_MissingIDProperty(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"entidad":"X"},"geometry":null}]}`)

	_, err := ParseRegions(data, "ent", "entidad", DefaultIDWidth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ent"`)
}

func TestParseRegions_InvalidJSON(t *testing.T) {
	_, err := ParseRegions([]byte("not geojson"), "ent", "entidad", DefaultIDWidth)
	assert.Error(t, err)
}

func TestLoadRegions_FromFile(t *testing.T) {
	src := gridRegions(4)
	path := filepath.Join(t.TempDir(), "states.geojson")
	require.NoError(t, os.WriteFile(path, regionsGeoJSON(t, src), 0644))

	rs, err := LoadRegions(context.Background(), GeometryConfig{
		Path:         path,
		IDProperty:   "ent",
		NameProperty: "entidad",
	}, DefaultIDWidth)
	require.NoError(t, err)
	assert.Equal(t, keysOf(src), keysOf(rs), "file order and keys are preserved")
}

func TestRegionSet_Bound(t *testing.T) {
	rs := &RegionSet{Regions: []Region{
		{Geometry: square(0, 0, 1)},
		{Geometry: nil},
		{Geometry: square(5, -2, 2)},
	}}
	b := rs.Bound()
	assert.Equal(t, orb.Point{0, -2}, b.Min)
	assert.Equal(t, orb.Point{7, 1}, b.Max)
}
