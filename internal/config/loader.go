// Package config provides centralized configuration management for greenstreak.
// Layers, lowest first: SetDefaults, the user config file discovered in the
// XDG config directory, GREENSTREAK_ environment variables, then runtime
// overrides (command flags).
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/greenstreak/greenstreak/internal/appid"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/github"
	"github.com/greenstreak/greenstreak/internal/core/scheduler"
)

const defaultAppName = "greenstreak"

var (
	appConfig   *Config
	configMu    sync.RWMutex
	identityMu  sync.Mutex
	appIdentity *appidentity.Identity
)

// EnvVarSpec maps a short environment variable name to a config key.
// AutomaticEnv already covers the long form (GREENSTREAK_GITHUB_TOKEN);
// specs add the conventional aliases.
type EnvVarSpec struct {
	Key   string
	Names []string
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	safe := scheduler.DefaultSafeModeConfig()

	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", github.DefaultBaseURL)
	v.SetDefault("github.request_timeout", github.DefaultTimeout.String())
	v.SetDefault("github.repos", []string{})
	v.SetDefault("github.branch", "main")
	v.SetDefault("github.path", "activity.md")
	v.SetDefault("github.content", "")

	v.SetDefault("limits.commits.capacity", engine.DefaultLimits[engine.LimiterCommits].Capacity)
	v.SetDefault("limits.commits.window", engine.DefaultLimits[engine.LimiterCommits].Window.String())
	v.SetDefault("limits.api.capacity", engine.DefaultLimits[engine.LimiterAPI].Capacity)
	v.SetDefault("limits.api.window", engine.DefaultLimits[engine.LimiterAPI].Window.String())
	v.SetDefault("limits.daily.capacity", engine.DefaultLimits[engine.LimiterDaily].Capacity)
	v.SetDefault("limits.daily.window", engine.DefaultLimits[engine.LimiterDaily].Window.String())

	v.SetDefault("schedule.mode", scheduler.ModeSafe)
	v.SetDefault("schedule.selection", string(engine.SelectRotation))
	v.SetDefault("schedule.timezone", "")
	v.SetDefault("schedule.interval", "1h")
	v.SetDefault("schedule.commit_on_start", false)
	v.SetDefault("schedule.safe.min_delay", safe.MinDelay.String())
	v.SetDefault("schedule.safe.max_delay", safe.MaxDelay.String())
	v.SetDefault("schedule.safe.skip_probability", safe.SkipProbability)
	v.SetDefault("schedule.safe.max_commits_per_day", safe.MaxCommitsPerDay)
	v.SetDefault("schedule.safe.quiet_start", safe.QuietHours.Start)
	v.SetDefault("schedule.safe.quiet_end", safe.QuietHours.End)
	v.SetDefault("schedule.safe.workday_bias", safe.WorkdayBias)
	v.SetDefault("schedule.safe.natural_variation", safe.NaturalVariation)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.auto_start", false)

	v.SetDefault("health.enabled", true)
}

// BindEnv enables prefixed environment overrides plus the aliases from
// EnvSpecs.
func BindEnv(v *viper.Viper, prefix string) error {
	prefix = normalizePrefix(prefix)
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, spec := range EnvSpecs(prefix) {
		args := append([]string{spec.Key}, spec.Names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", spec.Key, err)
		}
	}
	return nil
}

// EnvSpecs lists the alias environment variables for prefix.
func EnvSpecs(prefix string) []EnvVarSpec {
	prefix = normalizePrefix(prefix)
	return []EnvVarSpec{
		{Key: "github.token", Names: []string{prefix + "GITHUB_TOKEN", prefix + "TOKEN", "GITHUB_TOKEN"}},
		{Key: "github.repos", Names: []string{prefix + "GITHUB_REPOS", prefix + "REPOS"}},
		{Key: "schedule.mode", Names: []string{prefix + "SCHEDULE_MODE", prefix + "MODE"}},

		{Key: "server.host", Names: []string{prefix + "SERVER_HOST", prefix + "HOST"}},
		{Key: "server.port", Names: []string{prefix + "SERVER_PORT", prefix + "PORT"}},

		{Key: "logging.level", Names: []string{prefix + "LOGGING_LEVEL", prefix + "LOG_LEVEL"}},
		{Key: "logging.profile", Names: []string{prefix + "LOGGING_PROFILE", prefix + "LOG_PROFILE"}},

		{Key: "store.driver", Names: []string{prefix + "STORE_DRIVER", prefix + "DB_DRIVER"}},
		{Key: "store.path", Names: []string{prefix + "STORE_PATH", prefix + "DB_PATH"}},
		{Key: "store.url", Names: []string{prefix + "STORE_URL", prefix + "DB_URL"}},
		{Key: "store.auth_token", Names: []string{prefix + "STORE_AUTH_TOKEN", prefix + "DB_AUTH_TOKEN"}},

		{Key: "metrics.port", Names: []string{prefix + "METRICS_PORT"}},
	}
}

// Load decodes the settings held by v, applies runtime overrides on top,
// validates the result and makes it available through GetConfig.
//
// Safe to call multiple times (e.g. config reload).
func Load(v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	merged := v.AllSettings()
	for _, overrides := range runtimeOverrides {
		mergeSettings(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.GitHub.Repos = cleanRepos(cfg.GitHub.Repos)
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate checks everything except the commit target. Commands that never
// talk to GitHub (stats, rate-limit, activity) only need this.
func (c *Config) Validate() error {
	for name, limit := range map[string]LimitConfig{
		engine.LimiterCommits: c.Limits.Commits,
		engine.LimiterAPI:     c.Limits.API,
		engine.LimiterDaily:   c.Limits.Daily,
	} {
		if limit.Capacity <= 0 || limit.Window <= 0 {
			return &engine.ConfigurationError{Reason: fmt.Sprintf("limit %q needs a positive capacity and window", name)}
		}
	}

	switch c.Schedule.Mode {
	case scheduler.ModeSafe, scheduler.ModeFixed:
	default:
		return &engine.ConfigurationError{Reason: fmt.Sprintf("unknown schedule mode %q", c.Schedule.Mode)}
	}
	if _, err := engine.ParseSelectionMode(c.Schedule.Selection); err != nil {
		return &engine.ConfigurationError{Reason: err.Error()}
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	if c.Schedule.Mode == scheduler.ModeFixed && c.Schedule.Interval <= 0 {
		return &engine.ConfigurationError{Reason: "fixed interval must be positive"}
	}
	return c.Schedule.Safe.SafeMode().Validate()
}

// ValidateGitHub checks the token and every configured commit target.
func (c *Config) ValidateGitHub() error {
	token := strings.TrimSpace(c.GitHub.Token)
	if token == "" {
		return &engine.ConfigurationError{Reason: "github token is required"}
	}
	if !github.ValidateToken(token) {
		return &engine.ConfigurationError{Reason: "github token " + github.MaskToken(token) + " is not a recognised token format"}
	}
	if len(c.GitHub.Repos) == 0 {
		return &engine.ConfigurationError{Reason: "at least one repository is required"}
	}
	for _, repo := range c.GitHub.Repos {
		if err := engine.ValidateTarget(repo, c.GitHub.Branch, c.GitHub.Path); err != nil {
			return &engine.ConfigurationError{Reason: err.Error()}
		}
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// mergeSettings copies src into dst. Dotted keys such as "server.port" are
// expanded into nested maps.
func mergeSettings(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		if head, rest, ok := strings.Cut(key, "."); ok {
			child, ok := dst[head].(map[string]any)
			if !ok {
				child = map[string]any{}
				dst[head] = child
			}
			mergeSettings(child, map[string]any{rest: value})
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				mergeSettings(existing, nested)
				continue
			}
		}
		dst[key] = value
	}
}

func cleanRepos(repos []string) []string {
	out := make([]string, 0, len(repos))
	for _, repo := range repos {
		if repo = strings.TrimSpace(repo); repo != "" {
			out = append(out, repo)
		}
	}
	return out
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = strings.ToUpper(defaultAppName)
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "greenstreak" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = defaultAppName
	binaryName = defaultAppName

	identityMu.Lock()
	if appIdentity == nil {
		if identity, err := appid.Get(context.Background()); err == nil {
			appIdentity = identity
		}
	}
	identity := appIdentity
	identityMu.Unlock()

	if identity == nil {
		return configName, binaryName
	}
	if strings.TrimSpace(identity.ConfigName) != "" {
		configName = identity.ConfigName
	}
	if strings.TrimSpace(identity.BinaryName) != "" {
		binaryName = identity.BinaryName
	}
	return configName, binaryName
}

// UserConfigPaths returns the XDG config files to check, most specific first.
func UserConfigPaths() []string {
	configName, binaryName := appNamesForPaths()
	var legacy []string
	if binaryName != configName {
		legacy = append(legacy, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacy...)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
