package statemap

import (
	"fmt"

	"github.com/paulmach/orb"
)

// RegionKey is the composite join key of a state: zero-padded id plus
// upper-cased name.
type RegionKey struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (k RegionKey) String() string {
	return fmt.Sprintf("%s/%s", k.ID, k.Name)
}

// Region is one row of the geometry source.
type Region struct {
	Key      RegionKey
	Geometry orb.Geometry // orb.Polygon or orb.MultiPolygon; nil when absent
}

// RegionSet is the ordered geometry source. Order is preserved through the
// join and drives label placement.
type RegionSet struct {
	Regions []Region
}

// Len returns the number of regions.
func (rs *RegionSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Regions)
}

// Bound returns the bounding box of every non-nil geometry.
func (rs *RegionSet) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, r := range rs.Regions {
		if r.Geometry == nil {
			continue
		}
		gb := r.Geometry.Bound()
		if first {
			b = gb
			first = false
			continue
		}
		b = b.Union(gb)
	}
	return b
}

// AttributeTable is a header plus string cells, as read from CSV, XLSX or
// SQLite. Cells are kept raw; numeric conversion happens in the join.
type AttributeTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the named column, or -1.
func (t *AttributeTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row i, column j, or "" for short rows.
func (t *AttributeTable) Cell(i, j int) string {
	if i < 0 || i >= len(t.Rows) || j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// JoinedRow is one region after the left join. Value is nil when the
// attribute table has no row for the key or the cell is not numeric.
type JoinedRow struct {
	Key      RegionKey    `json:"key"`
	Geometry orb.Geometry `json:"-"`
	Value    *float64     `json:"value"`
}

// HasValue reports whether the row carries a numeric value.
func (r JoinedRow) HasValue() bool {
	return r.Value != nil
}

// JoinedDataset is the per-request result of joining one initiative column
// onto the region set.
type JoinedDataset struct {
	Initiative string      `json:"initiative"`
	Rows       []JoinedRow `json:"rows"`
}

// Bound returns the bounding box of the joined geometries.
func (d *JoinedDataset) Bound() orb.Bound {
	rs := RegionSet{Regions: make([]Region, 0, len(d.Rows))}
	for _, r := range d.Rows {
		rs.Regions = append(rs.Regions, Region{Key: r.Key, Geometry: r.Geometry})
	}
	return rs.Bound()
}

// Label is an accepted label anchor.
type Label struct {
	Key    RegionKey `json:"key"`
	Text   string    `json:"text"`
	Anchor orb.Point `json:"anchor"`
}

// CoverageWarning lists geometry keys that have no attribute row. It is
// non-fatal: the affected rows are rendered as missing.
type CoverageWarning struct {
	Initiative  string      `json:"initiative"`
	MissingKeys []RegionKey `json:"missingKeys"`
}

func (w *CoverageWarning) String() string {
	keys := make([]string, len(w.MissingKeys))
	for i, k := range w.MissingKeys {
		keys[i] = k.String()
	}
	return fmt.Sprintf("%d region(s) missing from attributes for %s: %v", len(w.MissingKeys), w.Initiative, keys)
}
