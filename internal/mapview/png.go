package mapview

import (
	"image/color"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/points"
)

// PNGOptions configures the static choropleth.
type PNGOptions struct {
	Title        string
	WidthInches  float64 // default 12
	HeightInches float64 // default 12
	PointColor   classify.RGBA
	PointLabel   string
	Legend       []classify.LegendEntry
}

// RenderPNG draws areas filled with colors (parallel to areas) and pts as dots.
func RenderPNG(w io.Writer, areas []geo.Area, colors []classify.RGBA, pts []points.Point, opts PNGOptions) error {
	if len(colors) != len(areas) {
		return eris.Errorf("mapview: %d colors for %d areas", len(colors), len(areas))
	}
	if geo.Bounds(areas) == nil {
		return eris.New("mapview: nothing to render")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	p.Add(&choropleth{areas: areas, colors: colors})

	if len(pts) > 0 {
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i] = plotter.XY{X: pt.Lng, Y: pt.Lat}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return eris.Wrap(err, "mapview: points")
		}
		clr := opts.PointColor
		if clr == (classify.RGBA{}) {
			clr = CompetitorColor
		}
		scatter.GlyphStyle.Color = clr.Color()
		scatter.GlyphStyle.Radius = vg.Points(3)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		if opts.PointLabel != "" {
			p.Legend.Add(opts.PointLabel, scatter)
		}
	}

	for _, e := range opts.Legend {
		p.Legend.Add(e.Label, swatch(e.Color))
	}
	p.Legend.Top = true

	width, height := opts.WidthInches, opts.HeightInches
	if width <= 0 {
		width = 12
	}
	if height <= 0 {
		height = 12
	}

	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, "png")
	if err != nil {
		return eris.Wrap(err, "mapview: png writer")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return eris.Wrap(err, "mapview: write png")
	}
	return nil
}

// RenderTrendPNG draws a line chart of monthly totals.
func RenderTrendPNG(w io.Writer, labels []string, totals []float64, title string) error {
	if len(labels) != len(totals) {
		return eris.Errorf("mapview: %d labels for %d totals", len(labels), len(totals))
	}
	if len(totals) == 0 {
		return eris.New("mapview: no months to chart")
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.Text = "Sales"

	xys := make(plotter.XYs, len(totals))
	ticks := make([]plot.Tick, len(labels))
	for i, v := range totals {
		xys[i] = plotter.XY{X: float64(i), Y: v}
		ticks[i] = plot.Tick{Value: float64(i), Label: labels[i]}
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return eris.Wrap(err, "mapview: trend line")
	}
	line.Width = vg.Points(2)
	line.Color = color.NRGBA{R: 0, G: 90, B: 180, A: 255}

	p.Add(plotter.NewGrid(), line)
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	wt, err := p.WriterTo(12*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return eris.Wrap(err, "mapview: png writer")
	}
	_, err = wt.WriteTo(w)
	return eris.Wrap(err, "mapview: write png")
}

// choropleth is a plot.Plotter that fills polygons. Holes are painted white.
type choropleth struct {
	areas  []geo.Area
	colors []classify.RGBA
}

var holeColor = color.White

// Plot implements plot.Plotter.
func (c *choropleth) Plot(cv draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&cv)
	outline := draw.LineStyle{Color: color.White, Width: vg.Points(0.5)}

	ring := func(flat []float64) []vg.Point {
		pts := make([]vg.Point, 0, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			pts = append(pts, vg.Point{X: trX(flat[i]), Y: trY(flat[i+1])})
		}
		return pts
	}

	for i, a := range c.areas {
		if a.Geom == nil {
			continue
		}
		fill := c.colors[i].Color()
		for j := 0; j < a.Geom.NumPolygons(); j++ {
			poly := a.Geom.Polygon(j)
			for r := 0; r < poly.NumLinearRings(); r++ {
				pts := ring(poly.LinearRing(r).FlatCoords())
				if len(pts) < 3 {
					continue
				}
				if r == 0 {
					cv.FillPolygon(fill, pts)
				} else {
					cv.FillPolygon(holeColor, pts)
				}
				cv.StrokeLines(outline, cv.ClipLinesXY(pts)...)
			}
		}
	}
}

// DataRange implements plot.DataRanger.
func (c *choropleth) DataRange() (xmin, xmax, ymin, ymax float64) {
	b := geo.Bounds(c.areas)
	if b == nil {
		return 0, 0, 0, 0
	}
	xmin, ymin, xmax, ymax = b.Min(0), b.Min(1), b.Max(0), b.Max(1)

	// pad so edge polygons are not drawn on the axes
	padX := math.Max((xmax-xmin)*0.02, 1e-6)
	padY := math.Max((ymax-ymin)*0.02, 1e-6)
	return xmin - padX, xmax + padX, ymin - padY, ymax + padY
}

// swatch is a legend thumbnail filled with one color.
type swatch classify.RGBA

// Thumbnail implements plot.Thumbnailer.
func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(classify.RGBA(s).Color(), pts)
}
