package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/sales"
)

// writeJSON encodes v before writing the header so an encoding failure
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseFilter reads citymun, min, max and hide_competitors.
func parseFilter(q url.Values) (dashboard.Filter, error) {
	f := dashboard.Filter{CityMun: strings.TrimSpace(q.Get("citymun"))}
	for _, p := range []struct {
		name string
		dst  **float64
	}{{"min", &f.MinScore}, {"max", &f.MaxScore}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := dashboard.ParseBound(raw)
		if err != nil {
			return f, eris.Wrapf(err, "invalid %s score %q", p.name, raw)
		}
		*p.dst = &v
	}
	if raw := q.Get("hide_competitors"); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			return f, eris.Errorf("invalid hide_competitors %q", raw)
		}
		f.HideCompetitors = hide
	}
	return f, nil
}

// scoresView resolves the request to a score view, writing the error
// response itself when it returns nil.
func (s *Server) scoresView(w http.ResponseWriter, r *http.Request) *dashboard.Result {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	in, err := s.loader.Scores(r.Context())
	if err != nil {
		s.log.Error("load score inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load boundary layer")
		return nil
	}

	res, err := in.Dashboard(f, s.opts.Scheme, s.opts.SchemeFile, s.opts.Zoom)
	switch {
	case eris.Is(err, dashboard.ErrNoMatch):
		writeJSON(w, http.StatusNotFound, map[string]string{"warning": dashboard.ErrNoMatch.Error()})
		return nil
	case eris.Is(err, dashboard.ErrBadFilter):
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	case err != nil:
		s.log.Error("build score view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build score view")
		return nil
	}
	return res
}

func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Scores(r.Context())
	if err != nil {
		s.log.Error("load score inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load boundary layer")
		return
	}
	names := append([]string{dashboard.AllMunicipalities}, in.Layer.CityMuns()...)
	writeJSON(w, http.StatusOK, map[string]any{"municipalities": names})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Scores(r.Context())
	if err != nil {
		s.log.Error("load score inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load boundary layer")
		return
	}
	f := dashboard.Filter{CityMun: r.URL.Query().Get("citymun")}
	writeJSON(w, http.StatusOK, toSummary(f.Label(), dashboard.Summarize(in.Layer, f.CityMun)))
}

func (s *Server) handleBarangays(w http.ResponseWriter, r *http.Request) {
	res := s.scoresView(w, r)
	if res == nil {
		return
	}
	s.recordRun(r.Context(), "scores", res.Filter.Params(), len(res.Areas), res.Warnings)
	writeJSON(w, http.StatusOK, toBarangays(res))
}

func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Scores(r.Context())
	if err != nil {
		s.log.Error("load score inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load competitors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"competitors": in.Competitors,
		"count":       len(in.Competitors),
		"warnings":    in.Warnings,
	})
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Scores(r.Context())
	if err != nil {
		s.log.Error("load score inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load boundary layer")
		return
	}
	cls, err := in.Classifier(s.opts.Scheme, s.opts.SchemeFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"legend": cls.Legend()})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	res := s.scoresView(w, r)
	if res == nil {
		return
	}
	deck, err := mapview.ScoresDeck(res, s.opts.Deck)
	if err != nil {
		s.log.Error("build deck", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build map")
		return
	}
	s.recordRun(r.Context(), "scores", res.Filter.Params(), len(res.Areas), res.Warnings)
	writeJSON(w, http.StatusOK, map[string]any{"deck": deck, "warnings": res.Warnings})
}

func (s *Server) handleMapGeoJSON(w http.ResponseWriter, r *http.Request) {
	res := s.scoresView(w, r)
	if res == nil {
		return
	}
	fc, err := mapview.ScoresFeatureCollection(res)
	if err != nil {
		s.log.Error("build feature collection", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build map")
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode map")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleMapPNG(w http.ResponseWriter, r *http.Request) {
	res := s.scoresView(w, r)
	if res == nil {
		return
	}
	var buf bytes.Buffer
	err := mapview.RenderPNG(&buf, res.Areas, res.Colors, res.Competitors, mapview.PNGOptions{
		Title:        fmt.Sprintf("Site scores: %s", res.Filter.Label()),
		WidthInches:  s.opts.PNGWidth,
		HeightInches: s.opts.PNGHeight,
		PointLabel:   "Competitors",
		Legend:       res.Legend,
	})
	if err != nil {
		s.log.Error("render png", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render map")
		return
	}
	writePNG(w, buf.Bytes())
}

// salesView resolves the request to a sales view, writing the error response
// itself when it returns nil.
func (s *Server) salesView(w http.ResponseWriter, r *http.Request) *sales.Result {
	in, err := s.loader.Sales(r.Context())
	if err != nil {
		s.log.Error("load sales inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sales inputs")
		return nil
	}
	res, err := in.Dashboard(sales.Options{
		Month:          r.URL.Query().Get("month"),
		LowPercentile:  s.opts.LowPercentile,
		HighPercentile: s.opts.HighPercentile,
		Zoom:           s.opts.SalesZoom,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}
	return res
}

func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	res := s.salesView(w, r)
	if res == nil {
		return
	}
	deck, err := mapview.SalesDeck(res, s.opts.Deck)
	if err != nil {
		s.log.Error("build sales deck", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build map")
		return
	}
	s.recordRun(r.Context(), "sales", map[string]string{"month": res.Month}, len(res.Municipalities), res.Warnings)
	writeJSON(w, http.StatusOK, toSales(res, deck))
}

func (s *Server) handleSalesMonths(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Sales(r.Context())
	if err != nil {
		s.log.Error("load sales inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sales inputs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": sales.Months(in.Records)})
}

func (s *Server) handleSalesTrendPNG(w http.ResponseWriter, r *http.Request) {
	in, err := s.loader.Sales(r.Context())
	if err != nil {
		s.log.Error("load sales inputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sales inputs")
		return
	}
	trend := sales.Trend(in.Records)
	if len(trend) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"warning": "No sales recorded."})
		return
	}
	labels := make([]string, len(trend))
	totals := make([]float64, len(trend))
	for i, m := range trend {
		labels[i], totals[i] = m.Month, m.Total
	}
	var buf bytes.Buffer
	if err := mapview.RenderTrendPNG(&buf, labels, totals, "Monthly sales"); err != nil {
		s.log.Error("render trend", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render trend")
		return
	}
	writePNG(w, buf.Bytes())
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	sr, ok := s.loader.(StatsReporter)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, sr.Stats())
}
