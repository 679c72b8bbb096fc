// Package mapview turns dashboard results into a deck.gl-style layer
// specification, GeoJSON, or a static PNG choropleth.
package mapview

import (
	"fmt"
	"math"
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/sales"
)

// Layer types understood by the deck renderer.
const (
	TypeTile    = "TileLayer"
	TypeGeoJSON = "GeoJsonLayer"
	TypeScatter = "ScatterplotLayer"
	TypeIcon    = "IconLayer"
)

// CompetitorColor is the fill color of competitor markers.
var CompetitorColor = classify.RGBA{0, 0, 255, 200}

// Options configures the deck specification.
type Options struct {
	TileURL          string
	CompetitorRadius int
	IconURL          string
	ScoreLabel       string // tooltip label, e.g. "Score (mean_0)"
}

// Deck is a serializable map specification.
type Deck struct {
	Layers           []Layer                `json:"layers"`
	InitialViewState dashboard.ViewState    `json:"initialViewState"`
	Tooltip          Tooltip                `json:"tooltip"`
	MapStyle         *string                `json:"mapStyle"`
	Legend           []classify.LegendEntry `json:"legend,omitempty"`
}

// Tooltip is an HTML template with {property} placeholders.
type Tooltip struct {
	HTML  string            `json:"html"`
	Style map[string]string `json:"style,omitempty"`
}

// Layer is one deck layer. Only the fields its type uses are set.
type Layer struct {
	Type          string `json:"@@type"`
	ID            string `json:"id"`
	Data          any    `json:"data,omitempty"`
	Pickable      bool   `json:"pickable"`
	Stroked       bool   `json:"stroked,omitempty"`
	Filled        bool   `json:"filled,omitempty"`
	AutoHighlight bool   `json:"autoHighlight,omitempty"`
	MinZoom       *int   `json:"minZoom,omitempty"`
	MaxZoom       *int   `json:"maxZoom,omitempty"`
	TileSize      int    `json:"tileSize,omitempty"`
	GetFillColor  any    `json:"getFillColor,omitempty"`
	GetLineColor  any    `json:"getLineColor,omitempty"`
	GetLineWidth  any    `json:"getLineWidth,omitempty"`
	GetPosition   string `json:"getPosition,omitempty"`
	GetRadius     any    `json:"getRadius,omitempty"`
	GetIcon       string `json:"getIcon,omitempty"`
	GetSize       any    `json:"getSize,omitempty"`
	SizeScale     int    `json:"sizeScale,omitempty"`
}

var tooltipStyle = map[string]string{"backgroundColor": "steelblue", "color": "white"}

// TileLayer returns the basemap layer for a {z}/{x}/{y} URL template.
func TileLayer(urlTemplate string) Layer {
	minZ, maxZ := 0, 19
	return Layer{
		Type:     TypeTile,
		ID:       "basemap",
		Data:     urlTemplate,
		MinZoom:  &minZ,
		MaxZoom:  &maxZ,
		TileSize: 256,
	}
}

// ScoresDeck builds the map for a score dashboard view.
func ScoresDeck(res *dashboard.Result, opts Options) (Deck, error) {
	fc, err := ScoresFeatureCollection(res)
	if err != nil {
		return Deck{}, err
	}

	layers := []Layer{
		TileLayer(opts.TileURL),
		{
			Type:          TypeGeoJSON,
			ID:            "barangays",
			Data:          fc,
			Pickable:      true,
			Stroked:       true,
			Filled:        true,
			AutoHighlight: true,
			GetFillColor:  "@@=properties.fill_color",
			GetLineColor:  [3]uint8{255, 255, 255},
			GetLineWidth:  1,
		},
	}

	if len(res.Competitors) > 0 {
		radius := opts.CompetitorRadius
		if radius <= 0 {
			radius = 60
		}
		layers = append(layers, Layer{
			Type:         TypeScatter,
			ID:           "competitors",
			Data:         res.Competitors,
			Pickable:     true,
			GetPosition:  "@@=[longitude, latitude]",
			GetRadius:    radius,
			GetFillColor: CompetitorColor,
		})
	}

	label := opts.ScoreLabel
	if label == "" {
		label = "Score"
	}
	return Deck{
		Layers:           layers,
		InitialViewState: res.View,
		Tooltip: Tooltip{
			HTML:  fmt.Sprintf("<b>{barangay_name}</b>, {citymun_name}<br/>%s: {score}<br/>", label),
			Style: tooltipStyle,
		},
		Legend: res.Legend,
	}, nil
}

// SalesDeck builds the map for a sales dashboard view. Branches are drawn as
// icons when an icon URL is configured and as dots otherwise.
func SalesDeck(res *sales.Result, opts Options) (Deck, error) {
	fc, err := SalesFeatureCollection(res)
	if err != nil {
		return Deck{}, err
	}

	layers := []Layer{
		TileLayer(opts.TileURL),
		{
			Type:          TypeGeoJSON,
			ID:            "municipalities",
			Data:          fc,
			Pickable:      true,
			Stroked:       true,
			Filled:        true,
			AutoHighlight: true,
			GetFillColor:  "@@=properties.fill_color",
			GetLineColor:  [3]uint8{255, 255, 255},
			GetLineWidth:  2,
		},
	}

	if len(res.BranchPoints) > 0 {
		if opts.IconURL != "" {
			layers = append(layers, Layer{
				Type:        TypeIcon,
				ID:          "branches",
				Data:        iconData(res, opts.IconURL),
				Pickable:    true,
				GetPosition: "@@=[longitude, latitude]",
				GetIcon:     "@@=icon_data",
				GetSize:     4,
				SizeScale:   10,
			})
		} else {
			layers = append(layers, Layer{
				Type:         TypeScatter,
				ID:           "branches",
				Data:         res.BranchPoints,
				Pickable:     true,
				GetPosition:  "@@=[longitude, latitude]",
				GetRadius:    80,
				GetFillColor: classify.RGBA{255, 255, 255, 230},
			})
		}
	}

	return Deck{
		Layers:           layers,
		InitialViewState: res.View,
		Tooltip: Tooltip{
			HTML:  "<b>{citymun_name}</b><br/>Sales: {total}<br/>Class: {class}",
			Style: tooltipStyle,
		},
		Legend: res.Legend,
	}, nil
}

type iconPoint struct {
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	IconData  iconSpec `json:"icon_data"`
}

type iconSpec struct {
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	AnchorY int    `json:"anchorY"`
}

func iconData(res *sales.Result, url string) []iconPoint {
	spec := iconSpec{URL: url, Width: 128, Height: 128, AnchorY: 128}
	out := make([]iconPoint, len(res.BranchPoints))
	for i, p := range res.BranchPoints {
		out[i] = iconPoint{Name: p.Name, Latitude: p.Lat, Longitude: p.Lng, IconData: spec}
	}
	return out
}

// ScoresFeatureCollection renders the filtered barangays with their fill colors.
func ScoresFeatureCollection(res *dashboard.Result) (*geojson.FeatureCollection, error) {
	comps := make(map[int]int, len(res.Ranking))
	for _, r := range res.Ranking {
		comps[r.AreaID] = r.Competitors
	}
	return FeatureCollection(res.Areas, res.Colors, func(i int) map[string]any {
		a := res.Areas[i]
		return map[string]any{
			"barangay_name": a.Barangay,
			"citymun_name":  a.CityMun,
			"score":         FormatScore(a.Score),
			"score_value":   nullable(a.Score),
			"competitors":   comps[a.ID],
		}
	})
}

// SalesFeatureCollection renders municipality polygons with their sales class.
func SalesFeatureCollection(res *sales.Result) (*geojson.FeatureCollection, error) {
	classes := make(map[string]string, len(res.Municipalities))
	for _, m := range res.Municipalities {
		classes[m.Key] = m.Class
	}
	return FeatureCollection(res.Areas, res.Colors, func(i int) map[string]any {
		a := res.Areas[i]
		class := classify.ClassNone
		if c, ok := classes[geo.NormalizeName(a.CityMun)]; ok {
			class = c
		}
		return map[string]any{
			"citymun_name": a.CityMun,
			"total":        FormatAmount(a.Score),
			"total_value":  nullable(a.Score),
			"class":        class,
		}
	})
}

// FormatScore renders a score with three decimals, or "n/a".
func FormatScore(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// FormatAmount renders a sales total with two decimals, or "n/a".
func FormatAmount(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
