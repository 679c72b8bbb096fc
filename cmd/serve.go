package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/site-selection/internal/config"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long:  "Serves the score and sales dashboards as JSON, GeoJSON and PNG over HTTP. Inputs are loaded on first request and reloaded when their files change.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		var runs server.RunRecorder
		if env.Store != nil {
			runs = env.Store
		}

		srv := server.New(env.Loader, runs, serverOptions(cfg))
		return srv.ListenAndServe(ctx, cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default server.port)")
	rootCmd.AddCommand(serveCmd)
}

func serverOptions(c *config.Config) server.Options {
	return server.Options{
		Scheme:         c.Classify.Scheme,
		SchemeFile:     c.Classify.SchemeFile,
		ScoreCol:       c.Boundary.ScoreCol,
		Zoom:           float64(c.Map.Zoom),
		SalesZoom:      float64(c.Map.Zoom),
		LowPercentile:  c.Sales.LowPercentile,
		HighPercentile: c.Sales.HighPercentile,
		PNGWidth:       float64(c.Map.PNGWidthInches),
		PNGHeight:      float64(c.Map.PNGHeightInches),
		Deck: mapview.Options{
			TileURL:          c.Map.TileURL,
			CompetitorRadius: c.Map.CompetitorRadius,
			IconURL:          c.Map.IconURL,
		},
		AllowedOrigins: c.Server.AllowedOrigins,
	}
}
