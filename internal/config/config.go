package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/spf13/viper"
)

// Config is the analyzer configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// LoggingConfig selects the zap logger setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScoringConfig holds the flag scoring rules.
type ScoringConfig struct {
	CapPoints             float64        `mapstructure:"cap_points"`
	BonusCapPoints        float64        `mapstructure:"bonus_cap_points"`
	HoldBonusPoints       float64        `mapstructure:"hold_bonus_points"`
	ReferenceTeam         string         `mapstructure:"reference_team"`
	ReturnIntervalSeconds int            `mapstructure:"return_interval_seconds"`
	MapReturnIntervals    map[string]int `mapstructure:"map_return_intervals"`
}

// ArchiveConfig controls on-disk report archiving.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// DatabaseConfig configures the optional PostgreSQL report store.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// ServerConfig configures the result feed.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
}

// WebSocketConfig configures the websocket report feed.
type WebSocketConfig struct {
	Address        string   `mapstructure:"address"`
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GRPCConfig configures the gRPC health endpoint.
type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load reads configuration from path, falling back to defaults when the file does
// not exist. Environment variables prefixed with CTFROUND_ override file values,
// e.g. CTFROUND_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CTFROUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scoring.cap_points", flag.DefaultCapPoints)
	v.SetDefault("scoring.bonus_cap_points", flag.DefaultCapPoints)
	v.SetDefault("scoring.hold_bonus_points", flag.DefaultHoldBonusPoints)
	v.SetDefault("scoring.reference_team", ctf.TeamBlue.String())
	v.SetDefault("scoring.return_interval_seconds", flag.DefaultReturnIntervalSeconds)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.directory", "data/reports")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 10*time.Second)

	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.grpc.address", ":17171")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "ctfround")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate checks the configuration for values the analyzer cannot run with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if _, err := ctf.ParseTeamColor(c.Scoring.ReferenceTeam); err != nil {
		return fmt.Errorf("invalid scoring.reference_team: %w", err)
	}
	if c.Scoring.ReturnIntervalSeconds <= 0 {
		return fmt.Errorf("scoring.return_interval_seconds must be positive, got %d", c.Scoring.ReturnIntervalSeconds)
	}
	for mapName, interval := range c.Scoring.MapReturnIntervals {
		if interval <= 0 {
			return fmt.Errorf("return interval for map %q must be positive, got %d", mapName, interval)
		}
	}
	if c.Scoring.CapPoints < 0 || c.Scoring.BonusCapPoints < 0 || c.Scoring.HoldBonusPoints < 0 {
		return errors.New("scoring point values must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Directory == "" {
		return errors.New("archive.directory is required when archiving is enabled")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return errors.New("database.url is required when the database is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}
	return nil
}

// TrackerOptions converts the scoring section into flag tracker options.
func (c *Config) TrackerOptions() flag.Options {
	// Validate has already checked the team name.
	team, _ := ctf.ParseTeamColor(c.Scoring.ReferenceTeam)
	return flag.Options{
		ReturnInterval:     c.Scoring.ReturnIntervalSeconds,
		MapReturnIntervals: c.Scoring.MapReturnIntervals,
		ReferenceTeam:      team,
		Points: flag.PointValues{
			Cap:       c.Scoring.CapPoints,
			BonusCap:  c.Scoring.BonusCapPoints,
			HoldBonus: c.Scoring.HoldBonusPoints,
		},
	}
}

// isMissingFile reports whether err means the config file does not exist. Viper
// only returns ConfigFileNotFoundError when searching config paths.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
