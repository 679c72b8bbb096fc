package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/report"
	"github.com/sells-group/site-selection/internal/sales"
	"github.com/sells-group/site-selection/internal/store"
)

var branchMarker = classify.RGBA{40, 40, 40, 230}

var salesCmd = &cobra.Command{
	Use:   "sales",
	Short: "Render the monthly sales dashboard",
	Long:  "Aggregates the sales sheet by municipality for one month, classifies municipalities as Low, Medium or High by percentile cutpoints, and prints the municipality, branch and trend tables.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "sales")
		if err != nil {
			return err
		}
		defer env.Close()

		month, _ := cmd.Flags().GetString("month")
		listMonths, _ := cmd.Flags().GetBool("list-months")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if format == report.FormatXLSX && (output == "" || output == "-") {
			return eris.New("sales: --output is required for xlsx")
		}

		in, err := env.Loader.Sales(ctx)
		if err != nil {
			return err
		}

		if listMonths {
			for _, m := range sales.Months(in.Records) {
				fmt.Fprintln(os.Stdout, m)
			}
			return nil
		}

		res, err := in.Dashboard(sales.Options{
			Month:          month,
			LowPercentile:  cfg.Sales.LowPercentile,
			HighPercentile: cfg.Sales.HighPercentile,
			Zoom:           float64(cfg.Map.Zoom),
		})
		if err != nil {
			return err
		}
		printWarnings(os.Stderr, res.Warnings)

		tables := []report.Table{
			report.SalesTable(res.Municipalities),
			report.BranchTable(res.Branches),
			report.TrendTable(res.Trend),
		}
		if err := writeTo(output, func(w io.Writer) error {
			return report.Write(w, format, tables...)
		}); err != nil {
			return err
		}

		trendPNG, _ := cmd.Flags().GetString("trend-png")
		if err := writeSalesMap(res, mapOutputsFromFlags(cmd), trendPNG); err != nil {
			return err
		}

		env.recordRun(ctx, store.Run{
			Kind:     "sales",
			Filters:  map[string]string{"month": res.Month},
			Rows:     len(res.Municipalities),
			Warnings: res.Warnings,
		})
		return nil
	},
}

func init() {
	salesCmd.Flags().String("month", "", "month to show as YYYY-MM (default all months)")
	salesCmd.Flags().Bool("list-months", false, "print the months present in the sales sheet and exit")
	salesCmd.Flags().String("format", report.FormatText, "table output format (table, csv, xlsx)")
	salesCmd.Flags().StringP("output", "o", "", "write tables to this file instead of stdout")
	salesCmd.Flags().String("trend-png", "", "write the monthly trend chart to this path")
	addMapFlags(salesCmd)
	rootCmd.AddCommand(salesCmd)
}

func writeSalesMap(res *sales.Result, outs mapOutputs, trendPNG string) error {
	if outs.GeoJSON != "" {
		fc, err := mapview.SalesFeatureCollection(res)
		if err != nil {
			return err
		}
		if err := writeJSONFile(outs.GeoJSON, fc); err != nil {
			return err
		}
	}
	if outs.Deck != "" {
		deck, err := mapview.SalesDeck(res, deckOptions())
		if err != nil {
			return err
		}
		if err := writeJSONFile(outs.Deck, deck); err != nil {
			return err
		}
	}
	if outs.PNG != "" {
		title := "Sales: all months"
		if res.Month != "" {
			title = fmt.Sprintf("Sales: %s", res.Month)
		}
		opts := pngOptions(title, "Branches", res.Legend)
		opts.PointColor = branchMarker
		if err := writeTo(outs.PNG, func(w io.Writer) error {
			return mapview.RenderPNG(w, res.Areas, res.Colors, res.BranchPoints, opts)
		}); err != nil {
			return err
		}
	}
	if trendPNG != "" {
		labels := make([]string, len(res.Trend))
		totals := make([]float64, len(res.Trend))
		for i, m := range res.Trend {
			labels[i], totals[i] = m.Month, m.Total
		}
		return writeTo(trendPNG, func(w io.Writer) error {
			return mapview.RenderTrendPNG(w, labels, totals, "Monthly sales")
		})
	}
	return nil
}
