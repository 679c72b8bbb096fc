package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/db"
	"github.com/sells-group/site-selection/internal/export"
	"github.com/sells-group/site-selection/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Load the scored barangay layer into PostGIS",
	Long:  "Writes every barangay with its municipality, province, score and geometry to a PostGIS table, creating the table and its spatial index when missing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		table, _ := cmd.Flags().GetString("table")
		if table != "" {
			cfg.Store.Table = table
		}
		mode, _ := cmd.Flags().GetString("mode")
		if mode != export.ModeReplace && mode != export.ModeUpsert {
			return eris.Errorf("export: unknown mode %q (want %s or %s)", mode, export.ModeReplace, export.ModeUpsert)
		}
		batch, _ := cmd.Flags().GetInt("batch-size")

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		layer, err := env.Loader.Boundary()
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{})
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := export.Load(ctx, pool, layer, export.Options{
			Table:     cfg.Store.Table,
			Mode:      mode,
			BatchSize: batch,
		})
		if err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("table", cfg.Store.Table), zap.Int64("rows", n))
		fmt.Fprintf(os.Stdout, "exported %d barangays to %s (%s)\n", n, cfg.Store.Table, mode)

		env.recordRun(ctx, store.Run{
			Kind: "export",
			Filters: map[string]string{
				"table": cfg.Store.Table,
				"mode":  mode,
				"batch": strconv.Itoa(batch),
			},
			Rows: int(n),
		})
		return nil
	},
}

func init() {
	exportCmd.Flags().String("table", "", "target table (default store.table)")
	exportCmd.Flags().String("mode", export.ModeReplace, "replace truncates the table first; upsert merges on area_id")
	exportCmd.Flags().Int("batch-size", 0, "rows per COPY batch (default 5000)")
	rootCmd.AddCommand(exportCmd)
}
