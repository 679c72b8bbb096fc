package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Boundary    BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Competitors PointsConfig   `yaml:"competitors" mapstructure:"competitors"`
	Branches    PointsConfig   `yaml:"branches" mapstructure:"branches"`
	Sales       SalesConfig    `yaml:"sales" mapstructure:"sales"`
	Classify    ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Map         MapConfig      `yaml:"map" mapstructure:"map"`
	Fetch       FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Cache       CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Store       StoreConfig    `yaml:"store" mapstructure:"store"`
	Server      ServerConfig   `yaml:"server" mapstructure:"server"`
	Log         LogConfig      `yaml:"log" mapstructure:"log"`
}

// BoundaryConfig locates the polygon layer and names its attribute columns.
type BoundaryConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	Province     string `yaml:"province" mapstructure:"province"`
	BarangayCol  string `yaml:"barangay_col" mapstructure:"barangay_col"`
	CityMunCol   string `yaml:"citymun_col" mapstructure:"citymun_col"`
	ScoreCol     string `yaml:"score_col" mapstructure:"score_col"`
	ProvinceCol  string `yaml:"province_col" mapstructure:"province_col"`
	Municipality string `yaml:"municipality_path" mapstructure:"municipality_path"`
}

// PointsConfig locates a point layer (competitors or branches) and names its columns.
// Source may be an http(s) URL, an ftp URL, or a local .csv/.xlsx path.
type PointsConfig struct {
	Source      string `yaml:"source" mapstructure:"source"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	NameCol     string `yaml:"name_col" mapstructure:"name_col"`
	CategoryCol string `yaml:"category_col" mapstructure:"category_col"`
	CityMunCol  string `yaml:"citymun_col" mapstructure:"citymun_col"`
	ProvinceCol string `yaml:"province_col" mapstructure:"province_col"`
	LatCol      string `yaml:"lat_col" mapstructure:"lat_col"`
	LonCol      string `yaml:"lon_col" mapstructure:"lon_col"`
}

// SalesConfig configures the monthly sales dashboard.
type SalesConfig struct {
	Source         string  `yaml:"source" mapstructure:"source"`
	Sheet          string  `yaml:"sheet" mapstructure:"sheet"`
	BranchCol      string  `yaml:"branch_col" mapstructure:"branch_col"`
	CityMunCol     string  `yaml:"citymun_col" mapstructure:"citymun_col"`
	MonthCol       string  `yaml:"month_col" mapstructure:"month_col"`
	AmountCol      string  `yaml:"amount_col" mapstructure:"amount_col"`
	LowPercentile  float64 `yaml:"low_percentile" mapstructure:"low_percentile"`
	HighPercentile float64 `yaml:"high_percentile" mapstructure:"high_percentile"`
}

// ClassifyConfig selects the choropleth scheme for scores.
type ClassifyConfig struct {
	Scheme     string `yaml:"scheme" mapstructure:"scheme"`
	SchemeFile string `yaml:"scheme_file" mapstructure:"scheme_file"`
}

// MapConfig configures the map layer specification and PNG rendering.
type MapConfig struct {
	TileURL          string `yaml:"tile_url" mapstructure:"tile_url"`
	Zoom             int    `yaml:"zoom" mapstructure:"zoom"`
	CompetitorRadius int    `yaml:"competitor_radius" mapstructure:"competitor_radius"`
	IconURL          string `yaml:"icon_url" mapstructure:"icon_url"`
	PNGWidthInches   int    `yaml:"png_width_inches" mapstructure:"png_width_inches"`
	PNGHeightInches  int    `yaml:"png_height_inches" mapstructure:"png_height_inches"`
}

// FetchConfig configures remote downloads of point and sales sheets.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig configures load-once memoization of inputs.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// StoreConfig configures the local SQLite store and the optional PostGIS target.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("boundary.path", "data/bulacanbarangay.shp")
	v.SetDefault("boundary.province", "Bulacan")
	v.SetDefault("boundary.barangay_col", "ADM4_EN")
	v.SetDefault("boundary.citymun_col", "ADM3_EN")
	v.SetDefault("boundary.score_col", "mean_0")
	v.SetDefault("boundary.province_col", "ADM2_EN")
	v.SetDefault("boundary.municipality_path", "")
	v.SetDefault("competitors.source", "")
	v.SetDefault("competitors.sheet", "")
	v.SetDefault("competitors.name_col", "brand")
	v.SetDefault("competitors.category_col", "category")
	v.SetDefault("competitors.citymun_col", "citymun")
	v.SetDefault("competitors.province_col", "province")
	v.SetDefault("competitors.lat_col", "latitude")
	v.SetDefault("competitors.lon_col", "longitude")
	v.SetDefault("branches.source", "")
	v.SetDefault("branches.sheet", "")
	v.SetDefault("branches.name_col", "branch")
	v.SetDefault("branches.citymun_col", "citymun")
	v.SetDefault("branches.lat_col", "latitude")
	v.SetDefault("branches.lon_col", "longitude")
	v.SetDefault("sales.source", "")
	v.SetDefault("sales.sheet", "")
	v.SetDefault("sales.branch_col", "branch")
	v.SetDefault("sales.citymun_col", "citymun")
	v.SetDefault("sales.month_col", "month")
	v.SetDefault("sales.amount_col", "sales")
	v.SetDefault("sales.low_percentile", 33.0)
	v.SetDefault("sales.high_percentile", 66.0)
	v.SetDefault("classify.scheme", "fixed11")
	v.SetDefault("classify.scheme_file", "")
	v.SetDefault("map.tile_url", "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}")
	v.SetDefault("map.zoom", 11)
	v.SetDefault("map.competitor_radius", 60)
	v.SetDefault("map.icon_url", "")
	v.SetDefault("map.png_width_inches", 12)
	v.SetDefault("map.png_height_inches", 12)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "site-selection/1.0")
	v.SetDefault("cache.max_entries", 16)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("store.sqlite_path", "site-selection.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.table", "public.barangay_scores")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by a command are present.
// Modes: "scores", "sales", "serve", "export".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scores":
		errs = c.Boundary.validate()
	case "serve":
		errs = c.Boundary.validate()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "sales":
		errs = c.Boundary.validate()
		if c.Sales.Source == "" {
			errs = append(errs, "sales.source is required")
		}
		if c.Sales.LowPercentile < 0 || c.Sales.HighPercentile > 100 || c.Sales.LowPercentile >= c.Sales.HighPercentile {
			errs = append(errs, fmt.Sprintf("sales percentiles must satisfy 0 <= low < high <= 100 (got %g, %g)",
				c.Sales.LowPercentile, c.Sales.HighPercentile))
		}
	case "export":
		errs = c.Boundary.validate()
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.Table == "" {
			errs = append(errs, "store.table is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (b BoundaryConfig) validate() []string {
	var errs []string
	if b.Path == "" {
		errs = append(errs, "boundary.path is required")
	}
	if b.BarangayCol == "" {
		errs = append(errs, "boundary.barangay_col is required")
	}
	if b.CityMunCol == "" {
		errs = append(errs, "boundary.citymun_col is required")
	}
	if b.ScoreCol == "" {
		errs = append(errs, "boundary.score_col is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
