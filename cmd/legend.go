package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/report"
)

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print the score color legend",
	Long:  "Prints the configured score scheme's class labels and colors. The relative scheme loads the boundary layer to resolve its score bounds.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format == report.FormatXLSX {
			return eris.New("legend: xlsx output is not supported")
		}

		var cls classify.Classifier
		if cfg.Classify.Scheme == classify.SchemeRelative3 {
			env, err := initEnv(cmd.Context(), "scores")
			if err != nil {
				return err
			}
			defer env.Close()

			layer, err := env.Loader.Boundary()
			if err != nil {
				return err
			}
			lo, hi, _ := layer.ScoreBounds()
			if cls, err = classify.New(cfg.Classify.Scheme, cfg.Classify.SchemeFile, lo, hi); err != nil {
				return err
			}
		} else {
			var err error
			if cls, err = classify.New(cfg.Classify.Scheme, cfg.Classify.SchemeFile, 0, 1); err != nil {
				return err
			}
		}

		return report.Write(os.Stdout, format, report.LegendTable(cls.Legend()))
	},
}

func init() {
	legendCmd.Flags().String("format", report.FormatText, "output format (table, csv)")
	rootCmd.AddCommand(legendCmd)
}
