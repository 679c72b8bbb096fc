package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/goleak"

	"github.com/sells-group/site-selection/internal/cache"
	"github.com/sells-group/site-selection/internal/geo"
	"github.com/sells-group/site-selection/internal/inputs"
	"github.com/sells-group/site-selection/internal/points"
	"github.com/sells-group/site-selection/internal/sales"
	"github.com/sells-group/site-selection/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func square(x, y, size float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y},
	}}})
}

type fakeLoader struct {
	scores *inputs.Scores
	sales  *inputs.Sales
	err    error
}

func (f *fakeLoader) Scores(context.Context) (*inputs.Scores, error) { return f.scores, f.err }
func (f *fakeLoader) Sales(context.Context) (*inputs.Sales, error)   { return f.sales, f.err }

type statsLoader struct{ fakeLoader }

func (statsLoader) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{"layers": {Entries: 1, Loads: 1}}
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []store.Run
}

func (f *fakeRuns) RecordRun(_ context.Context, run store.Run) (*store.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return &run, nil
}

func testLoader() *fakeLoader {
	layer := &geo.Layer{Areas: []geo.Area{
		{ID: 0, Barangay: "Poblacion", CityMun: "Malolos", Score: 0.82, Geom: square(120.80, 14.80, 0.01)},
		{ID: 1, Barangay: "Bulihan", CityMun: "Malolos", Score: 0.41, Geom: square(120.81, 14.80, 0.01)},
		{ID: 2, Barangay: "Tabe", CityMun: "Guiguinto", Score: math.NaN(), Geom: square(120.90, 14.80, 0.01)},
		{ID: 3, Barangay: "Lolomboy", CityMun: "Bocaue", Score: 0.65, Geom: square(120.92, 14.80, 0.01)},
	}}
	return &fakeLoader{
		scores: &inputs.Scores{
			Layer:       layer,
			Competitors: []points.Point{{Name: "Rival", Lat: 14.805, Lng: 120.805}},
			Warnings:    []string{"Dropped 1 rows without valid coordinates from competitors.csv"},
		},
		sales: &inputs.Sales{
			Municipalities: geo.DissolveByCityMun(layer.Areas),
			Records: []sales.Record{
				{Branch: "M1", CityMun: "Malolos", Month: "2024-01", Amount: 100},
				{Branch: "B1", CityMun: "Bocaue", Month: "2024-01", Amount: 40},
				{Branch: "M1", CityMun: "Malolos", Month: "2024-02", Amount: 120},
			},
		},
	}
}

func newTestServer(l Loader, runs RunRecorder) http.Handler {
	return New(l, runs, Options{ScoreCol: "mean_0", PNGWidth: 3, PNGHeight: 3}).Routes()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMunicipalities(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/municipalities")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"All municipalities", "Bocaue", "Guiguinto", "Malolos"}, decode(t, rec)["municipalities"])
}

func TestSummary(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "All municipalities", body["citymun"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 3)
	first := rows[0].(map[string]any)
	assert.Equal(t, "Bocaue", first["citymun"])
	last := rows[2].(map[string]any)
	assert.Equal(t, "Guiguinto", last["citymun"])
	assert.Nil(t, last["average"], "NaN is encoded as null")
	assert.Equal(t, float64(0), last["barangays"])
}

func TestSummary_OneMunicipality(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/summary?citymun=Malolos")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode(t, rec)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.615, rows[0].(map[string]any)["average"], 1e-9)
}

func TestBarangays(t *testing.T) {
	runs := &fakeRuns{}
	rec := get(t, newTestServer(testLoader(), runs), "/api/barangays?citymun=Malolos")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
	ranking := body["ranking"].([]any)
	require.Len(t, ranking, 2)
	top := ranking[0].(map[string]any)
	assert.Equal(t, "Poblacion", top["barangay"])
	assert.Equal(t, float64(1), top["competitors"])
	assert.Len(t, body["warnings"], 1)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "scores", runs.runs[0].Kind)
	assert.Equal(t, "Malolos", runs.runs[0].Filters["citymun"])
	assert.Equal(t, 2, runs.runs[0].Rows)
}

func TestBarangays_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		key    string
		want   string
	}{
		{"no match", "/api/barangays?min=0.83&max=0.9", http.StatusNotFound, "warning", "No barangays match the current filters."},
		{"unknown municipality", "/api/barangays?citymun=Atlantis", http.StatusNotFound, "warning", "No barangays match the current filters."},
		{"bad min", "/api/barangays?min=abc", http.StatusBadRequest, "error", `invalid min score "abc"`},
		{"min above layer", "/api/barangays?min=0.95", http.StatusNotFound, "warning", "No barangays match the current filters."},
		{"max below layer", "/api/map?max=0.1", http.StatusNotFound, "warning", "No barangays match the current filters."},
		{"inverted range", "/api/barangays?min=0.8&max=0.2", http.StatusBadRequest, "error", "greater than max score"},
		{"nan bounds", "/api/barangays?min=NaN&max=NaN", http.StatusBadRequest, "error", `invalid min score "NaN"`},
		{"infinite max", "/api/barangays?max=Inf", http.StatusBadRequest, "error", `invalid max score "Inf"`},
		{"bad flag", "/api/map?hide_competitors=maybe", http.StatusBadRequest, "error", "hide_competitors"},
	}
	h := newTestServer(testLoader(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decode(t, rec)[tt.key], tt.want)
		})
	}
}

func TestBarangays_BadSchemeFileIsServerError(t *testing.T) {
	opts := Options{ScoreCol: "mean_0", Scheme: "fixed11", SchemeFile: filepath.Join(t.TempDir(), "missing.yaml")}
	h := New(testLoader(), nil, opts).Routes()

	rec := get(t, h, "/api/barangays")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to build score view", decode(t, rec)["error"])
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"total": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to encode response", decode(t, rec)["error"])
}

func TestLoaderFailure(t *testing.T) {
	h := newTestServer(&fakeLoader{err: errors.New("no such file")}, nil)
	for _, target := range []string{"/api/barangays", "/api/summary", "/api/sales", "/api/municipalities"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}
}

func TestMap(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/map?citymun=All%20municipalities")
	require.Equal(t, http.StatusOK, rec.Code)

	deck := decode(t, rec)["deck"].(map[string]any)
	layers := deck["layers"].([]any)
	require.Len(t, layers, 3)
	assert.Equal(t, "TileLayer", layers[0].(map[string]any)["@@type"])
	assert.Equal(t, "ScatterplotLayer", layers[2].(map[string]any)["@@type"])
	assert.Contains(t, deck["tooltip"].(map[string]any)["html"], "Score (mean_0)")
}

func TestMap_HideCompetitors(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/map?hide_competitors=true")
	require.Equal(t, http.StatusOK, rec.Code)
	layers := decode(t, rec)["deck"].(map[string]any)["layers"].([]any)
	assert.Len(t, layers, 2)
}

func TestMapGeoJSON(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/map.geojson?citymun=Bocaue")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 1)
}

func TestMapPNG(t *testing.T) {
	rec := get(t, newTestServer(testLoader(), nil), "/api/map.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestCompetitorsAndLegend(t *testing.T) {
	h := newTestServer(testLoader(), nil)

	rec := get(t, h, "/api/competitors")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = get(t, h, "/api/legend")
	require.Equal(t, http.StatusOK, rec.Code)
	legend := decode(t, rec)["legend"].([]any)
	require.Len(t, legend, 12, "eleven buckets plus the no-score entry")
	assert.Equal(t, "no score", legend[11].(map[string]any)["label"])
}

func TestSales(t *testing.T) {
	runs := &fakeRuns{}
	rec := get(t, newTestServer(testLoader(), runs), "/api/sales")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, []any{"2024-01", "2024-02"}, body["months"])
	assert.Equal(t, float64(260), body["total"])
	assert.NotNil(t, body["cutpoints"])
	munis := body["municipalities"].([]any)
	require.Len(t, munis, 2)
	assert.Equal(t, "Malolos", munis[0].(map[string]any)["citymun"])
	assert.Contains(t, body, "map")

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "sales", runs.runs[0].Kind)
}

func TestSales_MonthFilterAndUnknownMonth(t *testing.T) {
	h := newTestServer(testLoader(), nil)

	rec := get(t, h, "/api/sales?month=2024-02")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(120), decode(t, rec)["total"])

	rec = get(t, h, "/api/sales?month=2030-01")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(0), body["total"])
	assert.Nil(t, body["cutpoints"])
	assert.Contains(t, body["warnings"].([]any)[0], "2030-01")
}

func TestSalesMonthsAndTrend(t *testing.T) {
	h := newTestServer(testLoader(), nil)

	rec := get(t, h, "/api/sales/months")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2024-01", "2024-02"}, decode(t, rec)["months"])

	rec = get(t, h, "/api/sales/trend.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestCacheStats(t *testing.T) {
	rec := get(t, newTestServer(&statsLoader{*testLoader()}, nil), "/api/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "layers")

	rec = get(t, newTestServer(testLoader(), nil), "/api/cache")
	assert.Empty(t, decode(t, rec))
}

func TestMetrics(t *testing.T) {
	h := newTestServer(testLoader(), nil)
	get(t, h, "/health")
	get(t, h, "/api/barangays?min=0.83&max=0.9")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `http_requests_total{method="GET",path="/health",status_code="200"} 1`)
	assert.Contains(t, out, `path="/api/barangays",status_code="404"`)
	assert.Contains(t, out, "http_request_duration_seconds")
}

func TestCORS(t *testing.T) {
	h := newTestServer(testLoader(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
