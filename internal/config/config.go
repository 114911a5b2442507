package config

import (
	"time"

	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
)

// Config represents the complete application configuration.
// Values are layered: defaults (SetDefaults), the user
// config file, GREENSTREAK_ environment variables, then command flags.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	Health   HealthConfig   `mapstructure:"health"`
}

// GitHubConfig identifies the account token and the commit target.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Repos are owner/name pairs. Automated commits pick one per attempt.
	Repos   []string `mapstructure:"repos"`
	Branch  string   `mapstructure:"branch"`
	Path    string   `mapstructure:"path"`
	Content string   `mapstructure:"content"`
}

// LimitConfig is one sliding window.
type LimitConfig struct {
	Capacity int           `mapstructure:"capacity"`
	Window   time.Duration `mapstructure:"window"`
}

// RateLimit converts to the engine representation.
func (l LimitConfig) RateLimit() engine.RateLimit {
	return engine.RateLimit{Capacity: l.Capacity, Window: l.Window}
}

// LimitsConfig holds the three named limiters.
type LimitsConfig struct {
	Commits LimitConfig `mapstructure:"commits"`
	API     LimitConfig `mapstructure:"api"`
	Daily   LimitConfig `mapstructure:"daily"`
}

// ScheduleConfig selects and tunes the automated scheduler.
type ScheduleConfig struct {
	// Mode is "safe" or "fixed".
	Mode string `mapstructure:"mode"`

	// Selection is "rotation" or "random".
	Selection string `mapstructure:"selection"`

	// Timezone is an IANA name used for quiet hours, weekends and day
	// boundaries. Empty means the host's local zone.
	Timezone string `mapstructure:"timezone"`

	Interval      time.Duration `mapstructure:"interval"`
	CommitOnStart bool          `mapstructure:"commit_on_start"`

	Safe SafeConfig `mapstructure:"safe"`
}

// SafeConfig mirrors scheduler.SafeModeConfig for decoding.
type SafeConfig struct {
	MinDelay         time.Duration `mapstructure:"min_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay"`
	SkipProbability  float64       `mapstructure:"skip_probability"`
	MaxCommitsPerDay int           `mapstructure:"max_commits_per_day"`
	QuietStart       int           `mapstructure:"quiet_start"`
	QuietEnd         int           `mapstructure:"quiet_end"`
	WorkdayBias      float64       `mapstructure:"workday_bias"`
	NaturalVariation float64       `mapstructure:"natural_variation"`
}

// SafeMode returns the scheduler policy.
func (s SafeConfig) SafeMode() scheduler.SafeModeConfig {
	return scheduler.SafeModeConfig{
		MinDelay:         s.MinDelay,
		MaxDelay:         s.MaxDelay,
		SkipProbability:  s.SkipProbability,
		MaxCommitsPerDay: s.MaxCommitsPerDay,
		QuietHours:       scheduler.QuietHours{Start: s.QuietStart, End: s.QuietEnd},
		WorkdayBias:      s.WorkdayBias,
		NaturalVariation: s.NaturalVariation,
	}
}

// Location resolves Timezone.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, &engine.ConfigurationError{Reason: "unknown timezone " + s.Timezone}
	}
	return loc, nil
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AutoStart launches the scheduler when serve starts.
	AutoStart bool `mapstructure:"auto_start"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
