package statemap

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// shared fixtures
// ---------------------------------------------------------------------------

// square returns a closed counter-clockwise square with its lower-left corner
// at (x, y).
func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

// cShape is a "C" whose area centroid falls in the open notch, outside the
// polygon.
func cShape() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{0, 0}, {10, 0}, {10, 2}, {2, 2}, {2, 8}, {10, 8}, {10, 10}, {0, 10}, {0, 0},
	}}
}

// gridRegions returns n unit-square regions three units apart with keys
// ("01", "S01") ... so the default separation never rejects a label.
func gridRegions(n int) *RegionSet {
	rs := &RegionSet{}
	for i := 0; i < n; i++ {
		rs.Regions = append(rs.Regions, Region{
			Key:      RegionKey{ID: fmt.Sprintf("%02d", i+1), Name: fmt.Sprintf("S%02d", i+1)},
			Geometry: square(float64(i%8)*3, float64(i/8)*3, 1),
		})
	}
	return rs
}

// attributesFor builds an attribute table with ent/entidad key columns and a
// single initiative column. IDs are written unpadded and names lower-case to
// exercise normalisation.
func attributesFor(keys []RegionKey, code string, value func(i int) string) *AttributeTable {
	t := &AttributeTable{Columns: []string{"ent", "entidad", code}}
	for i, k := range keys {
		id, _ := strconv.Atoi(k.ID)
		t.Rows = append(t.Rows, []string{strconv.Itoa(id), " " + strings.ToLower(k.Name) + " ", value(i)})
	}
	return t
}

func keysOf(rs *RegionSet) []RegionKey {
	keys := make([]RegionKey, len(rs.Regions))
	for i, r := range rs.Regions {
		keys[i] = r.Key
	}
	return keys
}

// regionsGeoJSON encodes a region set with numeric ids, the way the cleaned
// state file stores them.
func regionsGeoJSON(t *testing.T, rs *RegionSet) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for _, r := range rs.Regions {
		f := geojson.NewFeature(r.Geometry)
		id, err := strconv.Atoi(r.Key.ID)
		require.NoError(t, err)
		f.Properties["ent"] = id
		f.Properties["entidad"] = r.Key.Name
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	return data
}

func floatPtr(v float64) *float64 { return &v }

// writeSources writes regions as GeoJSON and attrs as CSV under dir and
// returns a config pointing at them.
func writeSources(t *testing.T, dir string, rs *RegionSet, attrs *AttributeTable) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Geometry.Path = filepath.Join(dir, "states.geojson")
	cfg.Attributes.Path = filepath.Join(dir, "data.csv")
	cfg.Moto.Path = filepath.Join(dir, "moto.csv")
	cfg.Moto.Encoding = "utf-8"
	cfg.Join.ExpectedRows = rs.Len()

	require.NoError(t, os.WriteFile(cfg.Geometry.Path, regionsGeoJSON(t, rs), 0o644))
	writeCSV(t, cfg.Attributes.Path, attrs)
	return cfg
}

func writeCSV(t *testing.T, path string, table *AttributeTable) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(table.Columns))
	require.NoError(t, w.WriteAll(table.Rows))
}
