package statemap

import (
	"image/color"
	"image/png"
	"io"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font/gofont/goregular"
)

// ptToMM converts typographic points to canvas millimetres.
const ptToMM = 25.4 / 72

// Shape is one filled region of a scene.
type Shape struct {
	Geometry orb.Geometry
	Fill     color.RGBA
}

// Scene is everything drawn on one map: filled shapes in order, then labels.
type Scene struct {
	Bound  orb.Bound
	Shapes []Shape
	Labels []Label
	Edge   color.RGBA // overrides the renderer's edge colour when opaque
}

// ChoroplethScene colours every joined row with scale. Rows without geometry
// are skipped; rows without a value get the scale's missing colour.
func ChoroplethScene(ds *JoinedDataset, scale ColorScale, labels []Label) Scene {
	sc := Scene{Bound: ds.Bound(), Labels: labels}
	for _, row := range ds.Rows {
		if row.Geometry == nil {
			continue
		}
		sc.Shapes = append(sc.Shapes, Shape{Geometry: row.Geometry, Fill: scale.At(row.Value)})
	}
	return sc
}

// VectorRenderer draws scenes as SVG or PNG.
type VectorRenderer struct {
	Width       float64           // output width in millimetres; height follows the aspect ratio
	Padding     float64           // millimetres around the map
	Resolution  canvas.Resolution // PNG resolution
	EdgeColor   color.RGBA
	StrokeWidth float64 // points
	FontSize    float64 // points
	LabelColor  color.RGBA
	HaloColor   color.RGBA
	Background  color.RGBA // zero alpha leaves the background transparent
}

// NewVectorRenderer creates a renderer from the render and label settings.
func NewVectorRenderer(rc RenderConfig, lc LabelConfig) (*VectorRenderer, error) {
	edge := ColorEdgeGrey
	if rc.EdgeColor != "" {
		var err error
		if edge, err = parseHexColor(rc.EdgeColor); err != nil {
			return nil, err
		}
	}
	dpi := rc.DPI
	if dpi <= 0 {
		dpi = 300
	}
	fontSize := lc.FontSize
	if fontSize <= 0 {
		fontSize = 7
	}
	return &VectorRenderer{
		Width:       rc.Width,
		Padding:     2,
		Resolution:  canvas.DPI(dpi),
		EdgeColor:   edge,
		StrokeWidth: rc.StrokeWidth,
		FontSize:    fontSize,
		LabelColor:  canvas.Black,
		HaloColor:   canvas.White,
	}, nil
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
	RenderText(text *canvas.Text, m canvas.Matrix)
}

// projection maps geometry coordinates into canvas millimetres, y up.
type projection struct {
	min    orb.Point
	scale  float64
	pad    float64
	width  float64
	height float64
}

func (r *VectorRenderer) project(b orb.Bound) projection {
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	inner := r.Width - 2*r.Padding
	if inner <= 0 {
		inner = r.Width
	}
	scale := 1.0
	if dx > 0 {
		scale = inner / dx
	} else if dy > 0 {
		scale = inner / dy
	}
	return projection{
		min:    b.Min,
		scale:  scale,
		pad:    r.Padding,
		width:  dx*scale + 2*r.Padding,
		height: dy*scale + 2*r.Padding,
	}
}

func (p projection) apply(pt orb.Point) (float64, float64) {
	return (pt[0]-p.min[0])*p.scale + p.pad, (pt[1]-p.min[1])*p.scale + p.pad
}

// RenderToSVG writes the scene as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer, sc Scene) error {
	if len(sc.Shapes) == 0 {
		return eris.New("render: scene has no shapes")
	}
	proj := r.project(sc.Bound)

	svgRenderer := svg.New(w, proj.width, proj.height, nil)
	if err := r.renderToCanvas(svgRenderer, proj, sc); err != nil {
		return err
	}
	if err := svgRenderer.Close(); err != nil {
		return eris.Wrap(err, "render: close svg")
	}
	return nil
}

// RenderToPNG writes the scene as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer, sc Scene) error {
	if len(sc.Shapes) == 0 {
		return eris.New("render: scene has no shapes")
	}
	proj := r.project(sc.Bound)

	rast := rasterizer.New(proj.width, proj.height, r.Resolution, canvas.DefaultColorSpace)
	if err := r.renderToCanvas(rast, proj, sc); err != nil {
		return err
	}
	if err := png.Encode(w, rast); err != nil {
		return eris.Wrap(err, "render: encode png")
	}
	return nil
}

// renderToCanvas renders the scene to a canvas renderer (shared logic for SVG and PNG)
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, proj projection, sc Scene) error {
	if r.Background.A > 0 {
		bgStyle := canvas.DefaultStyle
		bgStyle.Fill = canvas.Paint{Color: r.Background}
		bgStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		renderer.RenderPath(canvas.Rectangle(proj.width, proj.height), bgStyle, canvas.Identity)
	}

	edge := r.EdgeColor
	if sc.Edge.A > 0 {
		edge = sc.Edge
	}

	for _, s := range sc.Shapes {
		style := r.shapeStyle(s.Fill, edge)
		for _, path := range geometryPaths(s.Geometry, proj) {
			renderer.RenderPath(path, style, canvas.Identity)
		}
	}

	if len(sc.Labels) == 0 {
		return nil
	}

	family, err := labelFontFamily()
	if err != nil {
		return err
	}
	face := family.Face(r.FontSize, r.LabelColor, canvas.FontRegular, canvas.FontNormal)
	halo := family.Face(r.FontSize, r.HaloColor, canvas.FontRegular, canvas.FontNormal)

	haloOffset := r.FontSize * ptToMM / 14

	// The text baseline sits on the anchor, centred horizontally.
	for _, l := range sc.Labels {
		x, y := proj.apply(l.Anchor)

		haloText := canvas.NewTextLine(halo, l.Text, canvas.Center)
		for _, d := range [][2]float64{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			renderer.RenderText(haloText, canvas.Identity.Translate(x+d[0]*haloOffset, y+d[1]*haloOffset))
		}
		renderer.RenderText(canvas.NewTextLine(face, l.Text, canvas.Center), canvas.Identity.Translate(x, y))
	}
	return nil
}

// shapeStyle fills with fill and strokes region edges. StrokeWidth is in
// points.
func (r *VectorRenderer) shapeStyle(fill, edge color.RGBA) canvas.Style {
	style := canvas.DefaultStyle
	style.Fill = canvas.Paint{Color: fill}
	style.FillRule = canvas.EvenOdd
	if r.StrokeWidth > 0 {
		style.Stroke = canvas.Paint{Color: edge}
		style.StrokeWidth = r.StrokeWidth * ptToMM
	} else {
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
	}
	return style
}

// geometryPaths builds one closed path per polygon, holes included.
func geometryPaths(g orb.Geometry, proj projection) []*canvas.Path {
	var polys []orb.Polygon
	switch geom := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{geom}
	case orb.MultiPolygon:
		polys = geom
	default:
		return nil
	}

	paths := make([]*canvas.Path, 0, len(polys))
	for _, poly := range polys {
		cp := &canvas.Path{}
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			for i, pt := range ring {
				cx, cy := proj.apply(pt)
				if i == 0 {
					cp.MoveTo(cx, cy)
				} else {
					cp.LineTo(cx, cy)
				}
			}
			cp.Close()
		}
		if !cp.Empty() {
			paths = append(paths, cp)
		}
	}
	return paths
}

var (
	fontOnce   sync.Once
	fontFamily *canvas.FontFamily
	fontErr    error
)

func labelFontFamily() (*canvas.FontFamily, error) {
	fontOnce.Do(func() {
		ff := canvas.NewFontFamily("goregular")
		if err := ff.LoadFont(goregular.TTF, 0, canvas.FontRegular); err != nil {
			fontErr = eris.Wrap(err, "render: load label font")
			return
		}
		fontFamily = ff
	})
	return fontFamily, fontErr
}
