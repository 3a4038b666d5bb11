package statemap

import (
	"fmt"
	"html"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Page text for the moto status map.
const (
	MotoTitle = "Moto Initiative: Interactive State Map"
	MotoIntro = "This interactive map shows the **regulatory status** of the Moto initiative across Mexican States.\n\n" +
		"Hover over each state to view legal and contextual details."
	AMAMStatementURL = "https://autoridadesdemovilidad.org/la-regulacion-nacional-de-motos-es-urgente-autoridades-estatales-y-municipales-listas-para-colaborar-con-el-gobierno-de-mexico/"
	MotoLegalNote    = "In Mexico, there is no state where it is legal to offer motorcycle taxi services through apps such as Uber or DiDi. " +
		"These services currently operate in a national legal vacuum, as no permits have been granted anywhere in the country.\n\n" +
		"Furthermore, all Mexican states except for Mexico City, Colima, Tabasco, and Veracruz are members of the AMAM " +
		"(Asociación Mexicana de Autoridades de Movilidad). AMAM has issued an official statement against app-based " +
		"motorcycle ride-hailing services, emphasizing the need for national regulation."
)

// MotoCenter is the initial map view centre (lon, lat).
var MotoCenter = orb.Point{-102.5528, 23.6345}

// MotoFillAlpha is the straight alpha of every status fill.
const MotoFillAlpha = 120

// Moto status table columns. Missing optional columns read as "N/A".
const (
	motoColorColumn      = "color"
	motoAMAMColumn       = "amam"
	motoStatusColumn     = "Status"
	motoLegalBasisColumn = "Legal Basis"
	motoReferenceColumn  = "Reference"
	motoContentColumn    = "Content"
)

const notAvailable = "N/A"

var motoColors = map[string]color.RGBA{
	"Red+":  mustParseHexColor("#8B0000"),
	"Red":   mustParseHexColor("#FF6347"),
	"Gray":  mustParseHexColor("#A9A9A9"),
	"Green": mustParseHexColor("#228B22"),
}

// MotoColor maps a status colour label to its fill. Unknown labels are light
// grey.
func MotoColor(label string) color.RGBA {
	if c, ok := motoColors[strings.TrimSpace(label)]; ok {
		return c
	}
	return ColorLightGrey
}

// AMAMValue renders the AMAM membership cell: "Yes" when it is 1, "No" for
// any other number and "N/A" when blank or not a number.
func AMAMValue(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return notAvailable
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return notAvailable
	}
	if math.Trunc(v) == 1 {
		return "Yes"
	}
	return "No"
}

// MotoStatus is one region of the status map after the left merge.
type MotoStatus struct {
	Key        RegionKey    `json:"key"`
	Geometry   orb.Geometry `json:"-"`
	Matched    bool         `json:"matched"`
	ColorLabel string       `json:"color"`
	AMAM       string       `json:"amam"`
	Status     string       `json:"status"`
	LegalBasis string       `json:"legalBasis"`
	Reference  string       `json:"reference"`
	Content    string       `json:"content"`
}

// Fill returns the translucent fill for the status.
func (s MotoStatus) Fill() color.RGBA {
	return withAlpha(MotoColor(s.ColorLabel), MotoFillAlpha)
}

// Tooltip renders the hover text as HTML. Cell values are escaped.
func (s MotoStatus) Tooltip() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b><br>", html.EscapeString(s.Key.Name))
	fmt.Fprintf(&b, "<b>AMAM:</b> %s<br>", html.EscapeString(s.AMAM))
	fmt.Fprintf(&b, "<b>Status:</b> %s<br>", html.EscapeString(s.Status))
	fmt.Fprintf(&b, "<b>Legal Basis:</b> %s<br>", html.EscapeString(s.LegalBasis))
	fmt.Fprintf(&b, "<b>Reference:</b> %s<br>", html.EscapeString(s.Reference))
	fmt.Fprintf(&b, "<b>Content:</b> %s", html.EscapeString(s.Content))
	return b.String()
}

// JoinMoto left-merges the status table onto regions by the normalised key.
// Regions without a status row are kept with every field "N/A"; duplicate
// status rows fan out. Only the key columns are required.
func JoinMoto(regions *RegionSet, table *AttributeTable, opts JoinOptions) ([]MotoStatus, error) {
	if opts.IDWidth <= 0 {
		opts.IDWidth = DefaultIDWidth
	}
	var missing []string
	for _, col := range []string{opts.IDColumn, opts.NameColumn} {
		if table.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		available := make([]string, len(table.Columns))
		copy(available, table.Columns)
		return nil, &MissingColumnsError{Missing: missing, Available: available}
	}

	idIdx := table.ColumnIndex(opts.IDColumn)
	nameIdx := table.ColumnIndex(opts.NameColumn)
	index := make(map[RegionKey][]int, len(table.Rows))
	for i := range table.Rows {
		k := NormalizeKey(table.Cell(i, idIdx), table.Cell(i, nameIdx), opts.IDWidth)
		index[k] = append(index[k], i)
	}

	field := func(row int, col string) string {
		j := table.ColumnIndex(col)
		if row < 0 || j < 0 {
			return notAvailable
		}
		if v := strings.TrimSpace(table.Cell(row, j)); v != "" {
			return v
		}
		return notAvailable
	}

	out := make([]MotoStatus, 0, regions.Len())
	for _, r := range regions.Regions {
		k := NormalizeKey(r.Key.ID, r.Key.Name, opts.IDWidth)
		rows := index[k]
		if len(rows) == 0 {
			rows = []int{-1}
		}
		for _, i := range rows {
			s := MotoStatus{
				Key:        k,
				Geometry:   r.Geometry,
				Matched:    i >= 0,
				AMAM:       notAvailable,
				Status:     field(i, motoStatusColumn),
				LegalBasis: field(i, motoLegalBasisColumn),
				Reference:  field(i, motoReferenceColumn),
				Content:    field(i, motoContentColumn),
			}
			if i >= 0 {
				if j := table.ColumnIndex(motoColorColumn); j >= 0 {
					s.ColorLabel = strings.TrimSpace(table.Cell(i, j))
				}
				if j := table.ColumnIndex(motoAMAMColumn); j >= 0 {
					s.AMAM = AMAMValue(table.Cell(i, j))
				}
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// MotoFeatureCollection encodes the status map for web map clients. Each
// feature carries its key, the raw status fields, fill_color as an RGBA
// array and the tooltip HTML.
func MotoFeatureCollection(statuses []MotoStatus) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range statuses {
		if s.Geometry == nil {
			continue
		}
		c := MotoColor(s.ColorLabel)
		f := geojson.NewFeature(s.Geometry)
		f.Properties["ent"] = s.Key.ID
		f.Properties["entidad"] = s.Key.Name
		f.Properties["color"] = s.ColorLabel
		f.Properties["amam"] = s.AMAM
		f.Properties["Status"] = s.Status
		f.Properties["Legal Basis"] = s.LegalBasis
		f.Properties["Reference"] = s.Reference
		f.Properties["Content"] = s.Content
		f.Properties["fill_color"] = []int{int(c.R), int(c.G), int(c.B), MotoFillAlpha}
		f.Properties["tooltip"] = s.Tooltip()
		fc.Append(f)
	}
	return fc
}

// MotoScene builds an unlabelled scene with translucent status fills and
// black edges.
func MotoScene(statuses []MotoStatus) Scene {
	sc := Scene{Edge: color.RGBA{0, 0, 0, 255}}
	rs := RegionSet{Regions: make([]Region, 0, len(statuses))}
	for _, s := range statuses {
		if s.Geometry == nil {
			continue
		}
		rs.Regions = append(rs.Regions, Region{Key: s.Key, Geometry: s.Geometry})
		sc.Shapes = append(sc.Shapes, Shape{Geometry: s.Geometry, Fill: s.Fill()})
	}
	sc.Bound = rs.Bound()
	return sc
}
