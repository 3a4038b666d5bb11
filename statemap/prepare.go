package statemap

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StateAbbreviations maps the zero-padded state id to the label written into
// the cleaned geometry file.
var StateAbbreviations = map[string]string{
	"01": "AGU", "02": "BC", "03": "BCS", "04": "CAM", "05": "COA", "06": "COL",
	"07": "CHP", "08": "CHH", "09": "CDMX", "10": "DUR", "11": "GUA", "12": "GRO",
	"13": "HID", "14": "JAL", "15": "MEX", "16": "MIC", "17": "MOR", "18": "NAY",
	"19": "NLE", "20": "OAX", "21": "PUE", "22": "QUE", "23": "ROO", "24": "SLP",
	"25": "SIN", "26": "SON", "27": "TAB", "28": "TAM", "29": "TLA", "30": "VER",
	"31": "YUC", "32": "ZAC",
}

// PrepareOptions names the shapefile attribute fields.
type PrepareOptions struct {
	IDField      string // renamed to the id property
	NameField    string // renamed to the name property
	FeatureField string // records with a non-empty value are dropped
	IDProperty   string
	NameProperty string
	IDWidth      int
}

// DefaultPrepareOptions matches the INEGI state shapefile.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		IDField:      "NUM_EDO",
		NameField:    "ENTIDAD",
		FeatureField: "RASGO_GEOG",
		IDProperty:   "ent",
		NameProperty: "entidad",
		IDWidth:      DefaultIDWidth,
	}
}

// PrepareReport summarises a preprocessing run.
type PrepareReport struct {
	Records   int `json:"records"`   // shapes read
	Dropped   int `json:"dropped"`   // secondary features and empty shapes
	Regions   int `json:"regions"`   // after dissolve
	Dissolved int `json:"dissolved"` // records merged into an earlier region
}

// MissingSidecarsError lists shapefile components that are not on disk.
type MissingSidecarsError struct {
	Path    string
	Missing []string
}

func (e *MissingSidecarsError) Error() string {
	return "shapefile " + e.Path + " is missing component file(s): " + strings.Join(e.Missing, ", ")
}

// CheckShapefile verifies that the .shp, .shx and .dbf files all exist.
func CheckShapefile(shpPath string) error {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	var missing []string
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		if _, err := os.Stat(base + ext); err != nil {
			missing = append(missing, ext)
		}
	}
	if len(missing) > 0 {
		return &MissingSidecarsError{Path: shpPath, Missing: missing}
	}
	return nil
}

// ReadShapefileRegions reads the main state polygons from a shapefile,
// relabels them with StateAbbreviations and dissolves records sharing a key
// into one MultiPolygon. Regions come back sorted by key.
func ReadShapefileRegions(shpPath string, opts PrepareOptions) (*RegionSet, PrepareReport, error) {
	var report PrepareReport
	if err := CheckShapefile(shpPath); err != nil {
		return nil, report, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, report, eris.Wrapf(err, "prepare: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	idIdx := shpFieldIndex(reader, opts.IDField)
	if idIdx < 0 {
		return nil, report, eris.Errorf("prepare: shapefile has no %s field", opts.IDField)
	}
	nameIdx := shpFieldIndex(reader, opts.NameField)
	featIdx := shpFieldIndex(reader, opts.FeatureField)

	log := zap.L().With(zap.String("component", "prepare"), zap.String("shapefile", shpPath))

	parts := make(map[RegionKey][]orb.Polygon)
	for reader.Next() {
		_, shape := reader.Shape()
		report.Records++

		if featIdx >= 0 && shpAttribute(reader, featIdx) != "" {
			report.Dropped++
			continue
		}
		polys := shapePolygons(shape)
		if len(polys) == 0 {
			report.Dropped++
			continue
		}

		id := NormalizeID(shpAttribute(reader, idIdx), opts.IDWidth)
		name, ok := StateAbbreviations[id]
		if !ok {
			if nameIdx >= 0 {
				name = NormalizeName(shpAttribute(reader, nameIdx))
			}
			log.Warn("no abbreviation for state id", zap.String("id", id), zap.String("name", name))
		}

		k := RegionKey{ID: id, Name: name}
		if _, seen := parts[k]; seen {
			report.Dissolved++
		}
		parts[k] = append(parts[k], polys...)
	}

	keys := make([]RegionKey, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ID != keys[j].ID {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].Name < keys[j].Name
	})

	rs := &RegionSet{Regions: make([]Region, 0, len(keys))}
	for _, k := range keys {
		var g orb.Geometry = orb.MultiPolygon(parts[k])
		if len(parts[k]) == 1 {
			g = parts[k][0]
		}
		rs.Regions = append(rs.Regions, Region{Key: k, Geometry: g})
	}
	report.Regions = rs.Len()

	log.Info("shapefile read",
		zap.Int("records", report.Records),
		zap.Int("dropped", report.Dropped),
		zap.Int("regions", report.Regions),
	)
	return rs, report, nil
}

// RegionsToGeoJSON encodes regions as a FeatureCollection carrying only the
// id and name properties.
func RegionsToGeoJSON(rs *RegionSet, idProp, nameProp string) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range rs.Regions {
		f := geojson.NewFeature(r.Geometry)
		f.Properties[idProp] = r.Key.ID
		f.Properties[nameProp] = r.Key.Name
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "prepare: encode geojson")
	}
	return data, nil
}

// PrepareShapefile converts the raw state shapefile into the cleaned GeoJSON
// the dashboard loads. Coordinates are copied as-is; the input must already
// be geographic (EPSG:4326).
func PrepareShapefile(shpPath, outPath string, opts PrepareOptions) (PrepareReport, error) {
	rs, report, err := ReadShapefileRegions(shpPath, opts)
	if err != nil {
		return report, err
	}
	data, err := RegionsToGeoJSON(rs, opts.IDProperty, opts.NameProperty)
	if err != nil {
		return report, err
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, eris.Wrapf(err, "prepare: create %s", dir)
		}
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return report, eris.Wrapf(err, "prepare: write %s", outPath)
	}
	return report, nil
}

func shpFieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func shpAttribute(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// shapePolygons converts a shapefile polygon into orb polygons. Shapefile
// outer rings are clockwise and holes counter-clockwise; each hole is attached
// to the outer ring before it. Output rings follow GeoJSON orientation.
func shapePolygons(s shp.Shape) []orb.Polygon {
	p, ok := s.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []orb.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
		}

		if ring.Orientation() == orb.CCW && len(polys) > 0 {
			ring.Reverse()
			polys[len(polys)-1] = append(polys[len(polys)-1], ring)
			continue
		}
		if ring.Orientation() == orb.CW {
			ring.Reverse()
		}
		polys = append(polys, orb.Polygon{ring})
	}
	return polys
}
