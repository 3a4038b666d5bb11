package statemap

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rotisserie/eris"
)

// Fixed palette entries.
var (
	ColorWhite     = color.RGBA{255, 255, 255, 255}
	ColorLightGrey = color.RGBA{211, 211, 211, 255} // #D3D3D3, regions without data
	ColorEdgeGrey  = color.RGBA{128, 128, 128, 255} // #808080
)

// ColorScale maps a value in [0,1] linearly from white to a base colour.
// Null values take the missing colour.
type ColorScale struct {
	Low     color.RGBA
	High    color.RGBA
	Missing color.RGBA
}

// NewColorScale builds a white-to-base ramp.
func NewColorScale(baseHex, missingHex string) (ColorScale, error) {
	base, err := parseHexColor(baseHex)
	if err != nil {
		return ColorScale{}, err
	}
	missing := ColorLightGrey
	if missingHex != "" {
		if missing, err = parseHexColor(missingHex); err != nil {
			return ColorScale{}, err
		}
	}
	return ColorScale{Low: ColorWhite, High: base, Missing: missing}, nil
}

// At returns the fill colour for v. Values outside [0,1] are clamped.
func (s ColorScale) At(v *float64) color.RGBA {
	if v == nil || math.IsNaN(*v) {
		return s.Missing
	}
	t := math.Max(0, math.Min(1, *v))
	return color.RGBA{
		R: lerp(s.Low.R, s.High.R, t),
		G: lerp(s.Low.G, s.High.G, t),
		B: lerp(s.Low.B, s.High.B, t),
		A: 255,
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// HexColor formats c as #RRGGBB.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// parseHexColor parses #RRGGBB (the # is optional).
func parseHexColor(hex string) (color.RGBA, error) {
	s := hex
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, eris.Errorf("invalid color %q", hex)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, eris.Wrapf(err, "invalid color %q", hex)
	}
	return color.RGBA{r, g, b, 255}, nil
}

// mustParseHexColor is for compile-time palette constants.
func mustParseHexColor(hex string) color.RGBA {
	c, err := parseHexColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// withAlpha returns c with straight alpha a, premultiplied for canvas.
func withAlpha(c color.RGBA, a uint8) color.RGBA {
	return nrgbaToRGBA(color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
}

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}
