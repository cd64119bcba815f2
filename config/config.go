/*
Package config loads server configuration.

PURPOSE:
  One Config struct for everything cmd/server wires: HTTP server, store
  driver, JWT auth, engine behaviour, the recompute scheduler and logging.

SOURCES (lowest to highest precedence):
  1. Defaults (setDefaults)
  2. Optional YAML file passed with -config
  3. A .env file in the working directory, if present
  4. Environment variables prefixed LEAVE_, e.g.
       LEAVE_SERVER_PORT=9090
       LEAVE_DATABASE_DRIVER=postgres
       LEAVE_DATABASE_URL=postgres://...
       LEAVE_AUTH_JWT_SECRET=...
       LEAVE_ENGINE_POLICY_RESOLUTION=fallback

SEE ALSO:
  - cmd/server/main.go: Builds the store, engine, service and router from Config
  - logging/logging.go: Builds the zap logger from LoggerConfig
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // memory, sqlite, postgres
	Path     string `mapstructure:"path"`   // sqlite file
	URL      string `mapstructure:"url"`    // postgres connection string
	MaxConns int32  `mapstructure:"max_conns"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Disabled trusts X-Employee-ID / X-Role headers instead of a bearer token.
	Disabled bool `mapstructure:"disabled"`
}

type EngineConfig struct {
	PolicyResolution     string `mapstructure:"policy_resolution"` // strict, fallback
	PeriodType           string `mapstructure:"period_type"`       // calendar_year, fiscal_year
	FiscalYearStartMonth int    `mapstructure:"fiscal_year_start_month"`
	HoursPerDay          int    `mapstructure:"hours_per_day"`
	SkipNonWorkdays      bool   `mapstructure:"skip_non_workdays"`
	MaxRetries           int    `mapstructure:"max_retries"`
}

// Mode parses PolicyResolution. Validate has already rejected bad values.
func (e EngineConfig) Mode() leave.ResolutionMode {
	m, _ := leave.ParseResolutionMode(e.PolicyResolution)
	return m
}

func (e EngineConfig) Periods() generic.PeriodConfig {
	pc := generic.PeriodConfig{Type: generic.PeriodType(e.PeriodType)}
	if pc.Type == generic.PeriodFiscalYear {
		pc.FiscalYearStartMonth = time.Month(e.FiscalYearStartMonth)
	}
	return pc
}

// HoursPerDayDecimal is HoursPerDay as used by leave.Service.
func (e EngineConfig) HoursPerDayDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(e.HoursPerDay))
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr or a file
}

// =============================================================================
// LOADING
// =============================================================================

const envPrefix = "LEAVE"

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "leave.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.disabled", false)

	v.SetDefault("engine.policy_resolution", string(leave.ResolveStrict))
	v.SetDefault("engine.period_type", string(generic.PeriodCalendarYear))
	v.SetDefault("engine.fiscal_year_start_month", 4)
	v.SetDefault("engine.hours_per_day", 8)
	v.SetDefault("engine.skip_non_workdays", false)
	v.SetDefault("engine.max_retries", 3)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")
}

// =============================================================================
// VALIDATION
// =============================================================================

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be memory, sqlite or postgres, got %q", c.Database.Driver)
	}

	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required unless auth.disabled is set")
	}

	if _, err := leave.ParseResolutionMode(c.Engine.PolicyResolution); err != nil {
		return fmt.Errorf("engine.policy_resolution: %w", err)
	}
	switch generic.PeriodType(c.Engine.PeriodType) {
	case generic.PeriodCalendarYear:
	case generic.PeriodFiscalYear:
		if c.Engine.FiscalYearStartMonth < 1 || c.Engine.FiscalYearStartMonth > 12 {
			return fmt.Errorf("engine.fiscal_year_start_month must be 1-12, got %d", c.Engine.FiscalYearStartMonth)
		}
	default:
		return fmt.Errorf("engine.period_type must be calendar_year or fiscal_year, got %q", c.Engine.PeriodType)
	}
	if c.Engine.HoursPerDay <= 0 {
		return errors.New("engine.hours_per_day must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		return errors.New("engine.max_retries must not be negative")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive when the scheduler is enabled")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
