// Package inputs loads and memoizes the boundary, point and sales layers a
// dashboard renders from.
package inputs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-selection/internal/cache"
	"github.com/sells-group/site-selection/internal/config"
	"github.com/sells-group/site-selection/internal/fetcher"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/points"
	"github.com/sells-group/site-selection/internal/sales"
)

// Scores is what the score dashboard needs.
type Scores struct {
	Layer       *geo.Layer
	Competitors []points.Point
	Warnings    []string
}

// Sales is what the sales dashboard needs.
type Sales struct {
	Municipalities []geo.Municipality
	Records        []sales.Record
	Branches       []points.Point
	Warnings       []string
}

var errUnreadable = eris.New("inputs: point source unreadable")

type pointSet struct {
	points   []points.Point
	warnings []string
}

type salesSheet struct {
	records  []sales.Record
	warnings []string
}

// Loader loads inputs once per source version. Local files are keyed by path,
// mtime and size; remote sources by URL until the TTL expires.
type Loader struct {
	cfg    *config.Config
	reader *fetcher.Reader
	layers *cache.Memo[*geo.Layer]
	munis  *cache.Memo[[]geo.Municipality]
	points *cache.Memo[pointSet]
	sales  *cache.Memo[salesSheet]
}

// New creates a Loader. src persists remote sheets between runs; nil disables it.
func New(cfg *config.Config, src fetcher.SourceCache) *Loader {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	n := cfg.Cache.MaxEntries

	httpOpts := fetcher.HTTPOptions{
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		UserAgent:  cfg.Fetch.UserAgent,
	}

	return &Loader{
		cfg:    cfg,
		reader: fetcher.NewReader(httpOpts, src),
		layers: cache.New[*geo.Layer](n, ttl),
		munis:  cache.New[[]geo.Municipality](n, ttl),
		points: cache.New[pointSet](n, ttl),
		sales:  cache.New[salesSheet](n, ttl),
	}
}

// Reader returns the table reader used for point and sales sheets.
func (l *Loader) Reader() *fetcher.Reader { return l.reader }

// Boundary loads the barangay layer. A missing or malformed layer is an error.
func (l *Loader) Boundary() (*geo.Layer, error) {
	b := l.cfg.Boundary
	return l.layers.GetOrLoad(sourceKey(b.Path), func() (*geo.Layer, error) {
		return geo.Load(b.Path, geo.ColumnMap{
			Barangay:    b.BarangayCol,
			CityMun:     b.CityMunCol,
			Score:       b.ScoreCol,
			ProvinceCol: b.ProvinceCol,
		})
	})
}

// Scores loads the boundary layer and competitors concurrently. Competitor
// problems become warnings.
func (l *Loader) Scores(ctx context.Context) (*Scores, error) {
	out := &Scores{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		layer, err := l.Boundary()
		if err != nil {
			return err
		}
		out.Layer = layer
		return nil
	})
	g.Go(func() error {
		ps := l.loadPoints(gctx, l.cfg.Competitors)
		out.Competitors, out.Warnings = ps.points, ps.warnings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "inputs: scores")
	}

	zap.L().With(zap.String("component", "inputs")).Info("score inputs loaded",
		zap.Int("areas", len(out.Layer.Areas)),
		zap.Int("competitors", len(out.Competitors)),
		zap.Int("warnings", len(out.Warnings)),
	)
	return out, nil
}

// Sales loads municipality polygons, the sales sheet and branch locations
// concurrently. Municipality polygons come from boundary.municipality_path
// when set and are dissolved from the barangay layer otherwise.
func (l *Loader) Sales(ctx context.Context) (*Sales, error) {
	out := &Sales{}
	var branchWarnings, salesWarnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		munis, err := l.Municipalities()
		if err != nil {
			return err
		}
		out.Municipalities = munis
		return nil
	})
	g.Go(func() error {
		sheet, err := l.loadSales(gctx)
		if err != nil {
			return err
		}
		out.Records, salesWarnings = sheet.records, sheet.warnings
		return nil
	})
	g.Go(func() error {
		ps := l.loadPoints(gctx, l.cfg.Branches)
		out.Branches, branchWarnings = ps.points, ps.warnings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "inputs: sales")
	}

	out.Warnings = append(append([]string(nil), salesWarnings...), branchWarnings...)
	zap.L().With(zap.String("component", "inputs")).Info("sales inputs loaded",
		zap.Int("municipalities", len(out.Municipalities)),
		zap.Int("records", len(out.Records)),
		zap.Int("branches", len(out.Branches)),
	)
	return out, nil
}

// Municipalities returns one polygon group per municipality.
func (l *Loader) Municipalities() ([]geo.Municipality, error) {
	b := l.cfg.Boundary
	if b.Municipality != "" {
		return l.munis.GetOrLoad(sourceKey(b.Municipality), func() ([]geo.Municipality, error) {
			layer, err := geo.Load(b.Municipality, geo.ColumnMap{CityMun: b.CityMunCol, ProvinceCol: b.ProvinceCol})
			if err != nil {
				return nil, err
			}
			return geo.MunicipalityLayer(layer), nil
		})
	}

	return l.munis.GetOrLoad("dissolved:"+sourceKey(b.Path), func() ([]geo.Municipality, error) {
		layer, err := l.Boundary()
		if err != nil {
			return nil, err
		}
		return geo.DissolveByCityMun(layer.Areas), nil
	})
}

func (l *Loader) loadPoints(ctx context.Context, pc config.PointsConfig) pointSet {
	if pc.Source == "" {
		return pointSet{}
	}
	cols := points.ColumnMap{
		Name:     pc.NameCol,
		Category: pc.CategoryCol,
		CityMun:  pc.CityMunCol,
		Province: pc.ProvinceCol,
		Lat:      pc.LatCol,
		Lng:      pc.LonCol,
		Sheet:    pc.Sheet,
	}
	// Unreadable sources are not memoized so the next render retries them.
	var failed []string
	ps, err := l.points.GetOrLoad(sourceKey(pc.Source)+"#"+pc.Sheet, func() (pointSet, error) {
		pts, warnings := points.Load(ctx, pc.Source, cols, l.reader)
		if pts == nil && len(warnings) > 0 {
			failed = warnings
			return pointSet{}, errUnreadable
		}
		return pointSet{points: pts, warnings: warnings}, nil
	})
	if err != nil {
		if failed == nil {
			failed = []string{fmt.Sprintf("Could not load points from %s", pc.Source)}
		}
		return pointSet{warnings: failed}
	}
	return ps
}

func (l *Loader) loadSales(ctx context.Context) (salesSheet, error) {
	sc := l.cfg.Sales
	if sc.Source == "" {
		return salesSheet{}, eris.New("inputs: sales.source is not configured")
	}
	cols := sales.ColumnMap{
		Branch:  sc.BranchCol,
		CityMun: sc.CityMunCol,
		Month:   sc.MonthCol,
		Amount:  sc.AmountCol,
		Sheet:   sc.Sheet,
	}
	return l.sales.GetOrLoad(sourceKey(sc.Source)+"#"+sc.Sheet, func() (salesSheet, error) {
		recs, warnings, err := sales.Load(ctx, sc.Source, cols, l.reader)
		if err != nil {
			return salesSheet{}, err
		}
		return salesSheet{records: recs, warnings: warnings}, nil
	})
}

// Stats reports memo statistics per input kind.
func (l *Loader) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"layers":         l.layers.Stats(),
		"municipalities": l.munis.Stats(),
		"points":         l.points.Stats(),
		"sales":          l.sales.Stats(),
	}
}

// Purge drops every memoized input.
func (l *Loader) Purge() {
	l.layers.Purge()
	l.munis.Purge()
	l.points.Purge()
	l.sales.Purge()
}

func sourceKey(src string) string {
	if strings.Contains(src, "://") && !strings.HasPrefix(src, "file://") {
		return src
	}
	return cache.FileKey(strings.TrimPrefix(src, "file://"))
}
