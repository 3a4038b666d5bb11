package statemap

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultMinSeparation is the minimum distance between label anchors, in
// geometry units (degrees for the state file).
const DefaultMinSeparation = 1.0

// boundaryEpsilon is how close to an edge a centroid may be before it counts
// as lying on the boundary.
const boundaryEpsilon = 1e-9

// LabelPlacement is the result of one placement pass.
type LabelPlacement struct {
	Labels     []Label `json:"labels"`     // accepted, in acceptance order
	Ineligible int     `json:"ineligible"` // no name, value or geometry, or centroid outside
	Rejected   int     `json:"rejected"`   // too close to an accepted anchor
}

// PlaceLabels picks label anchors greedily in dataset order. A region is
// labelled at its area centroid when the centroid lies strictly inside the
// region and is at least minSep from every anchor accepted so far. The pass
// is deterministic and never fails; unlabelled regions are still drawn.
func PlaceLabels(ds *JoinedDataset, minSep float64) LabelPlacement {
	var out LabelPlacement
	if ds == nil {
		return out
	}

	for _, row := range ds.Rows {
		anchor, ok := labelAnchor(row)
		if !ok {
			out.Ineligible++
			continue
		}
		if tooClose(anchor, out.Labels, minSep) {
			out.Rejected++
			continue
		}
		out.Labels = append(out.Labels, Label{Key: row.Key, Text: row.Key.Name, Anchor: anchor})
	}
	return out
}

// labelAnchor returns the centroid of an eligible row.
func labelAnchor(row JoinedRow) (orb.Point, bool) {
	if row.Key.Name == "" || !row.HasValue() {
		return orb.Point{}, false
	}
	g := arealGeometry(row.Geometry)
	if g == nil {
		return orb.Point{}, false
	}
	c, area := planar.CentroidArea(g)
	if area == 0 {
		return orb.Point{}, false
	}
	if !containsStrictly(g, c) {
		return orb.Point{}, false
	}
	return c, true
}

func tooClose(p orb.Point, accepted []Label, minSep float64) bool {
	for _, l := range accepted {
		if planar.Distance(p, l.Anchor) < minSep {
			return true
		}
	}
	return false
}

// arealGeometry returns g without ring-less polygons and empty rings, or nil
// when nothing areal is left.
func arealGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Polygon:
		if p := cleanPolygon(geom); p != nil {
			return p
		}
	case orb.MultiPolygon:
		var mp orb.MultiPolygon
		for _, poly := range geom {
			if p := cleanPolygon(poly); p != nil {
				mp = append(mp, p)
			}
		}
		switch len(mp) {
		case 0:
		case 1:
			return mp[0]
		default:
			return mp
		}
	}
	return nil
}

func cleanPolygon(poly orb.Polygon) orb.Polygon {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return nil
	}
	out := orb.Polygon{poly[0]}
	for _, hole := range poly[1:] {
		if len(hole) > 0 {
			out = append(out, hole)
		}
	}
	return out
}

// containsStrictly reports whether p is inside g and not on any ring edge.
func containsStrictly(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return false
		}
		return planar.PolygonContains(geom, p) && !onPolygonBoundary(geom, p)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if len(poly) == 0 || len(poly[0]) == 0 {
				continue
			}
			if planar.PolygonContains(poly, p) && !onPolygonBoundary(poly, p) {
				return true
			}
		}
	}
	return false
}

func onPolygonBoundary(poly orb.Polygon, p orb.Point) bool {
	for _, ring := range poly {
		for i := 1; i < len(ring); i++ {
			if planar.DistanceFromSegment(ring[i-1], ring[i], p) <= boundaryEpsilon {
				return true
			}
		}
	}
	return false
}
