package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/poi-cli/internal/mapsync"
	"github.com/sells-group/poi-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  store.Config   `yaml:"store" mapstructure:"store"`
	Map    mapsync.Config `yaml:"map" mapstructure:"map"`
	Export ExportConfig   `yaml:"export" mapstructure:"export"`
	Server ServerConfig   `yaml:"server" mapstructure:"server"`
	Log    LogConfig      `yaml:"log" mapstructure:"log"`
}

// ExportConfig configures file exports.
type ExportConfig struct {
	Filename string `yaml:"filename" mapstructure:"filename"`
	Format   string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	Container   string   `yaml:"container" mapstructure:"container"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxBodyMB   int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("POI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	mapDefaults := mapsync.DefaultConfig()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "poi.db")
	v.SetDefault("store.key", "poi_editor_state")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff_ms", 100)
	v.SetDefault("map.style_url", mapDefaults.StyleURL)
	v.SetDefault("map.center_lng", mapDefaults.CenterLng)
	v.SetDefault("map.center_lat", mapDefaults.CenterLat)
	v.SetDefault("map.zoom", mapDefaults.Zoom)
	v.SetDefault("map.navigation_control", mapDefaults.NavigationControl)
	v.SetDefault("map.hit_tolerance", mapDefaults.HitTolerance)
	v.SetDefault("map.fit_padding", mapDefaults.FitPadding)
	v.SetDefault("map.fit_max_zoom", mapDefaults.FitMaxZoom)
	v.SetDefault("export.filename", "pois-export")
	v.SetDefault("export.format", "geojson")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.container", "map")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 10)
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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateMap()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1 when rate limiting")
		}
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(errs, "; ")))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch strings.ToLower(c.Store.Driver) {
	case "", "sqlite", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for postgres")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required for redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Key == "" {
		errs = append(errs, "store.key is required")
	}
	return errs
}

func (c *Config) validateMap() []string {
	var errs []string
	if c.Map.CenterLng < -180 || c.Map.CenterLng > 180 || c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, "map center is out of range")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 24 {
		errs = append(errs, "map.zoom must be between 0 and 24")
	}
	if c.Map.HitTolerance < 0 {
		errs = append(errs, "map.hit_tolerance must be >= 0")
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
