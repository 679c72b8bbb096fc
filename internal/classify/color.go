// Package classify maps continuous values to choropleth buckets and fill colors.
package classify

import (
	"fmt"
	"image/color"

	"github.com/rotisserie/eris"
)

// RGBA is a fill color in the [R, G, B, A] form map layers expect.
type RGBA [4]uint8

// Missing is the fill color for areas without a usable value.
var Missing = RGBA{200, 200, 200, 180}

// Hex returns the color as #rrggbb, ignoring alpha.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Color converts to an image/color value for raster rendering.
func (c RGBA) Color() color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// ParseHex parses #rrggbb or #rrggbbaa. Alpha defaults to 180.
func ParseHex(s string) (RGBA, error) {
	var c RGBA
	c[3] = 180
	switch len(s) {
	case 7:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c[0], &c[1], &c[2]); err != nil {
			return RGBA{}, eris.Errorf("classify: invalid color %q", s)
		}
	case 9:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &c[0], &c[1], &c[2], &c[3]); err != nil {
			return RGBA{}, eris.Errorf("classify: invalid color %q", s)
		}
	default:
		return RGBA{}, eris.Errorf("classify: invalid color %q", s)
	}
	return c, nil
}

// LegendEntry describes one class of a classifier.
type LegendEntry struct {
	Label string `json:"label"`
	Color RGBA   `json:"color"`
}
