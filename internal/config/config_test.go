package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/bulacanbarangay.shp", cfg.Boundary.Path)
	assert.Equal(t, "ADM4_EN", cfg.Boundary.BarangayCol)
	assert.Equal(t, "ADM3_EN", cfg.Boundary.CityMunCol)
	assert.Equal(t, "mean_0", cfg.Boundary.ScoreCol)
	assert.Equal(t, "brand", cfg.Competitors.NameCol)
	assert.Equal(t, "latitude", cfg.Competitors.LatCol)
	assert.Equal(t, "longitude", cfg.Competitors.LonCol)
	assert.Empty(t, cfg.Competitors.Source)
	assert.Equal(t, "fixed11", cfg.Classify.Scheme)
	assert.InDelta(t, 33.0, cfg.Sales.LowPercentile, 0.001)
	assert.InDelta(t, 66.0, cfg.Sales.HighPercentile, 0.001)
	assert.Equal(t, 11, cfg.Map.Zoom)
	assert.Equal(t, 60, cfg.Map.CompetitorRadius)
	assert.Contains(t, cfg.Map.TileURL, "{z}")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
boundary:
  path: data/pampanga.shp
  score_col: suit_score
competitors:
  source: data/competitors.xlsx
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/pampanga.shp", cfg.Boundary.Path)
	assert.Equal(t, "suit_score", cfg.Boundary.ScoreCol)
	assert.Equal(t, "data/competitors.xlsx", cfg.Competitors.Source)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "ADM4_EN", cfg.Boundary.BarangayCol)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
classify:
  scheme: relative3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SITESEL_CLASSIFY_SCHEME", "fixed11")
	t.Setenv("SITESEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "fixed11", cfg.Classify.Scheme)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SITESEL_SERVER_PORT", "3000")
	t.Setenv("SITESEL_COMPETITORS_SOURCE", "https://example.com/sheet.csv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "https://example.com/sheet.csv", cfg.Competitors.Source)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("boundary: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the boundary defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Boundary.Path = "data/bulacanbarangay.shp"
	cfg.Boundary.BarangayCol = "ADM4_EN"
	cfg.Boundary.CityMunCol = "ADM3_EN"
	cfg.Boundary.ScoreCol = "mean_0"
	cfg.Sales.LowPercentile = 33
	cfg.Sales.HighPercentile = 66
	cfg.Store.Table = "public.barangay_scores"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScores_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("scores"))
}

func TestValidateScores_MissingColumns(t *testing.T) {
	cfg := validDefaults()
	cfg.Boundary.ScoreCol = ""
	cfg.Boundary.Path = ""

	err := cfg.Validate("scores")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary.path is required")
	assert.Contains(t, err.Error(), "boundary.score_col is required")
}

func TestValidateSales_RequiresSource(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sales.source is required")

	cfg.Sales.Source = "data/sales.xlsx"
	assert.NoError(t, cfg.Validate("sales"))
}

func TestValidateSales_PercentileOrder(t *testing.T) {
	cfg := validDefaults()
	cfg.Sales.Source = "data/sales.csv"
	cfg.Sales.LowPercentile = 70
	cfg.Sales.HighPercentile = 60

	err := cfg.Validate("sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentiles")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateExport_RequiresDatabase(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/geo"
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
