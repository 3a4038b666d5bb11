package statemap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadRegions reads the geometry source named by cfg and returns its regions
// in file order with normalised keys.
func LoadRegions(ctx context.Context, cfg GeometryConfig, idWidth int, opts ...FetchOption) (*RegionSet, error) {
	data, err := ReadSource(ctx, cfg.Path, opts...)
	if err != nil {
		return nil, err
	}
	rs, err := ParseRegions(data, cfg.IDProperty, cfg.NameProperty, idWidth)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry source %s", cfg.Path)
	}
	return rs, nil
}

// ParseRegions decodes a GeoJSON FeatureCollection. Only Polygon and
// MultiPolygon geometries are kept; other geometry types leave the region
// without geometry so it still joins but never gets a label.
func ParseRegions(data []byte, idProp, nameProp string, idWidth int) (*RegionSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "parsing GeoJSON")
	}

	log := zap.L().With(zap.String("component", "geometry"))
	rs := &RegionSet{Regions: make([]Region, 0, len(fc.Features))}

	for i, f := range fc.Features {
		rawID, ok := f.Properties[idProp]
		if !ok || rawID == nil {
			return nil, eris.Errorf("feature %d has no %q property", i, idProp)
		}
		id := propertyString(rawID)
		name := propertyString(f.Properties[nameProp])

		var g orb.Geometry
		switch geom := f.Geometry.(type) {
		case orb.Polygon:
			g = geom
		case orb.MultiPolygon:
			g = geom
		case nil:
		default:
			log.Debug("ignoring non-areal geometry",
				zap.Int("feature", i),
				zap.String("type", geom.GeoJSONType()),
			)
		}

		rs.Regions = append(rs.Regions, Region{
			Key:      NormalizeKey(id, name, idWidth),
			Geometry: g,
		})
	}

	log.Debug("regions loaded", zap.Int("count", len(rs.Regions)))
	return rs, nil
}

// propertyString formats a GeoJSON property as a string. Numbers are written
// without a trailing ".0" so 9 and "9" normalise to the same id.
func propertyString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
