// Package config loads datagridd settings from DATAGRID_* environment
// variables, with command-line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the daemon settings.
type Config struct {
	Addr string `env:"DATAGRID_ADDR" envDefault:":8080"`

	DBDriver string `env:"DATAGRID_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DATAGRID_DB_DSN"    envDefault:"file:datagrid.db?cache=shared"`

	JWTSecret    string        `env:"DATAGRID_JWT_SECRET"`
	SessionTTL   time.Duration `env:"DATAGRID_SESSION_TTL"   envDefault:"12h"`
	SessionSweep time.Duration `env:"DATAGRID_SESSION_SWEEP" envDefault:"1m"`

	AdminEmail    string `env:"DATAGRID_ADMIN_EMAIL"    envDefault:"admin@example.com"`
	AdminPassword string `env:"DATAGRID_ADMIN_PASSWORD" envDefault:"admin123"`

	SampleSize     int           `env:"DATAGRID_SAMPLE_SIZE"     envDefault:"45"`
	PageSize       int           `env:"DATAGRID_PAGE_SIZE"       envDefault:"10"`
	RefreshLatency time.Duration `env:"DATAGRID_REFRESH_LATENCY" envDefault:"1s"`

	LogLevel  string `env:"DATAGRID_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"DATAGRID_LOG_FORMAT" envDefault:"text"`

	ServerTiming bool   `env:"DATAGRID_SERVER_TIMING" envDefault:"false"`
	DBTracing    bool   `env:"DATAGRID_DB_TRACING"    envDefault:"false"`
	ServiceName  string `env:"DATAGRID_SERVICE_NAME"  envDefault:"datagridd"`

	ShutdownTimeout time.Duration `env:"DATAGRID_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment, then applies flags from args, then validates.
func Load(args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("datagridd", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "session store driver (sqlite or postgres)")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "session store DSN")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported db driver %q", c.DBDriver))
	}
	if c.DBDriver == "postgres" && c.DBDSN == "" {
		errs = append(errs, errors.New("postgres requires DATAGRID_DB_DSN"))
	}
	if c.AdminEmail == "" || c.AdminPassword == "" {
		errs = append(errs, errors.New("admin email and password are required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.SessionSweep <= 0 {
		errs = append(errs, errors.New("session sweep interval must be positive"))
	}
	if c.SampleSize < 0 {
		errs = append(errs, errors.New("sample size cannot be negative"))
	}
	if c.PageSize < 1 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.RefreshLatency < 0 {
		errs = append(errs, errors.New("refresh latency cannot be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
