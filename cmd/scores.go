package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/report"
	"github.com/sells-group/site-selection/internal/store"
)

// mapOutputs are the optional map artifacts a dashboard command writes.
type mapOutputs struct {
	GeoJSON string
	Deck    string
	PNG     string
}

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Render the barangay score dashboard",
	Long:  "Filters barangays by municipality and score range, prints the municipality summary and barangay ranking, and optionally writes the map as GeoJSON, a deck layer spec, or a PNG.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "scores")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		in, err := env.Loader.Scores(ctx)
		if err != nil {
			return err
		}

		res, err := in.Dashboard(f, cfg.Classify.Scheme, cfg.Classify.SchemeFile, float64(cfg.Map.Zoom))
		if eris.Is(err, dashboard.ErrNoMatch) {
			fmt.Fprintln(os.Stderr, dashboard.ErrNoMatch.Error())
			printWarnings(os.Stderr, in.Warnings)
			return nil
		}
		if err != nil {
			return err
		}
		printWarnings(os.Stderr, res.Warnings)

		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		limit, _ := cmd.Flags().GetInt("limit")
		if format == report.FormatXLSX && (output == "" || output == "-") {
			return eris.New("scores: --output is required for xlsx")
		}

		ranking := res.Ranking
		if limit > 0 && len(ranking) > limit {
			ranking = ranking[:limit]
		}
		tables := []report.Table{
			report.SummaryTable(res.Summary),
			report.RankingTable(ranking, cfg.Boundary.ScoreCol, len(res.Competitors) > 0),
		}
		if err := writeTo(output, func(w io.Writer) error {
			return report.Write(w, format, tables...)
		}); err != nil {
			return err
		}

		outs := mapOutputsFromFlags(cmd)
		if err := writeScoresMap(res, outs); err != nil {
			return err
		}

		env.recordRun(ctx, store.Run{
			Kind:     "scores",
			Filters:  f.Params(),
			Rows:     len(res.Areas),
			Warnings: res.Warnings,
		})
		return nil
	},
}

func init() {
	scoresCmd.Flags().String("citymun", "", "municipality or city (default all municipalities)")
	scoresCmd.Flags().String("min", "", "minimum score (default layer minimum)")
	scoresCmd.Flags().String("max", "", "maximum score (default layer maximum)")
	scoresCmd.Flags().Bool("hide-competitors", false, "do not overlay competitor locations")
	scoresCmd.Flags().String("format", report.FormatText, "table output format (table, csv, xlsx)")
	scoresCmd.Flags().StringP("output", "o", "", "write tables to this file instead of stdout")
	scoresCmd.Flags().Int("limit", 0, "max barangays in the ranking (0 = all)")
	addMapFlags(scoresCmd)
	rootCmd.AddCommand(scoresCmd)
}

func addMapFlags(cmd *cobra.Command) {
	cmd.Flags().String("geojson", "", "write the colored polygons as GeoJSON to this path")
	cmd.Flags().String("deck", "", "write the deck layer specification as JSON to this path")
	cmd.Flags().String("png", "", "write a static choropleth PNG to this path")
}

func mapOutputsFromFlags(cmd *cobra.Command) mapOutputs {
	var o mapOutputs
	o.GeoJSON, _ = cmd.Flags().GetString("geojson")
	o.Deck, _ = cmd.Flags().GetString("deck")
	o.PNG, _ = cmd.Flags().GetString("png")
	return o
}

// filterFromFlags reads the score filter. Empty bounds default to the layer's.
func filterFromFlags(cmd *cobra.Command) (dashboard.Filter, error) {
	var f dashboard.Filter
	f.CityMun, _ = cmd.Flags().GetString("citymun")
	f.HideCompetitors, _ = cmd.Flags().GetBool("hide-competitors")

	for _, p := range []struct {
		flag string
		dst  **float64
	}{{"min", &f.MinScore}, {"max", &f.MaxScore}} {
		raw, _ := cmd.Flags().GetString(p.flag)
		if raw == "" {
			continue
		}
		v, err := dashboard.ParseBound(raw)
		if err != nil {
			return f, eris.Wrapf(err, "invalid --%s %q", p.flag, raw)
		}
		*p.dst = &v
	}
	return f, nil
}

func deckOptions() mapview.Options {
	return mapview.Options{
		TileURL:          cfg.Map.TileURL,
		CompetitorRadius: cfg.Map.CompetitorRadius,
		IconURL:          cfg.Map.IconURL,
		ScoreLabel:       fmt.Sprintf("Score (%s)", cfg.Boundary.ScoreCol),
	}
}

func pngOptions(title, pointLabel string, legend []classify.LegendEntry) mapview.PNGOptions {
	return mapview.PNGOptions{
		Title:        title,
		WidthInches:  float64(cfg.Map.PNGWidthInches),
		HeightInches: float64(cfg.Map.PNGHeightInches),
		PointLabel:   pointLabel,
		Legend:       legend,
	}
}

func writeScoresMap(res *dashboard.Result, outs mapOutputs) error {
	if outs.GeoJSON != "" {
		fc, err := mapview.ScoresFeatureCollection(res)
		if err != nil {
			return err
		}
		if err := writeJSONFile(outs.GeoJSON, fc); err != nil {
			return err
		}
	}
	if outs.Deck != "" {
		deck, err := mapview.ScoresDeck(res, deckOptions())
		if err != nil {
			return err
		}
		if err := writeJSONFile(outs.Deck, deck); err != nil {
			return err
		}
	}
	if outs.PNG != "" {
		opts := pngOptions(fmt.Sprintf("Site scores: %s", res.Filter.Label()), "Competitors", res.Legend)
		return writeTo(outs.PNG, func(w io.Writer) error {
			return mapview.RenderPNG(w, res.Areas, res.Colors, res.Competitors, opts)
		})
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	return writeTo(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	})
}
