// Package server exposes the score and sales dashboards as a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/cache"
	"github.com/sells-group/site-selection/internal/inputs"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/store"
)

// Loader supplies the inputs each request renders from.
type Loader interface {
	Scores(ctx context.Context) (*inputs.Scores, error)
	Sales(ctx context.Context) (*inputs.Sales, error)
}

// StatsReporter is implemented by loaders that memoize inputs.
type StatsReporter interface {
	Stats() map[string]cache.Stats
}

// RunRecorder logs rendered views.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) (*store.Run, error)
}

// Options configures rendering.
type Options struct {
	Scheme         string
	SchemeFile     string
	ScoreCol       string
	Zoom           float64
	SalesZoom      float64
	LowPercentile  float64
	HighPercentile float64
	PNGWidth       float64
	PNGHeight      float64
	Deck           mapview.Options
	AllowedOrigins []string
}

// Server serves the dashboard API.
type Server struct {
	loader  Loader
	runs    RunRecorder
	opts    Options
	reg     *prometheus.Registry
	metrics *metrics
	log     *zap.Logger
}

// New creates a Server. runs may be nil.
func New(loader Loader, runs RunRecorder, opts Options) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	if opts.Deck.ScoreLabel == "" && opts.ScoreCol != "" {
		opts.Deck.ScoreLabel = fmt.Sprintf("Score (%s)", opts.ScoreCol)
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Server{
		loader:  loader,
		runs:    runs,
		opts:    opts,
		reg:     reg,
		metrics: newMetrics(reg),
		log:     zap.L().With(zap.String("component", "server")),
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/municipalities", s.handleMunicipalities)
		r.Get("/summary", s.handleSummary)
		r.Get("/barangays", s.handleBarangays)
		r.Get("/competitors", s.handleCompetitors)
		r.Get("/legend", s.handleLegend)
		r.Get("/map", s.handleMap)
		r.Get("/map.geojson", s.handleMapGeoJSON)
		r.Get("/map.png", s.handleMapPNG)
		r.Get("/sales", s.handleSales)
		r.Get("/sales/months", s.handleSalesMonths)
		r.Get("/sales/trend.png", s.handleSalesTrendPNG)
		r.Get("/cache", s.handleCache)
	})

	return r
}

// ListenAndServe serves on port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) recordRun(ctx context.Context, kind string, filters map[string]string, rows int, warnings []string) {
	if s.runs == nil {
		return
	}
	if _, err := s.runs.RecordRun(ctx, store.Run{Kind: kind, Filters: filters, Rows: rows, Warnings: warnings}); err != nil {
		s.log.Warn("record run failed", zap.String("kind", kind), zap.Error(err))
	}
}
