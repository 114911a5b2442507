package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/greenstreak/greenstreak/internal/config"
	"github.com/greenstreak/greenstreak/internal/core/engine"
	"github.com/greenstreak/greenstreak/internal/core/github"
	"github.com/greenstreak/greenstreak/internal/core/store"
	"github.com/greenstreak/greenstreak/internal/observability"
	"github.com/greenstreak/greenstreak/internal/output"
)

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on configuration, token, repositories, the local
store and limiter state. --online also reads the target file from GitHub.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		log.Info("=== " + bannerName + " ===")
		log.Info("")

		allChecks := true
		totalChecks := 7
		if doctorOnline {
			totalChecks++
		}
		step := func(n int, label string) string { return fmt.Sprintf("[%d/%d] Checking %s...", n, totalChecks, label) }

		// Check 1: runtime and SSOT versions
		version := crucible.GetVersion()
		log.Info(fmt.Sprintf("%s ✅ %s, gofulmen %s, crucible %s", step(1, "runtime"), runtime.Version(), version.Gofulmen, version.Crucible),
			zap.String("go_version", runtime.Version()),
			zap.String("gofulmen_version", version.Gofulmen),
			zap.String("crucible_version", version.Crucible))

		// Check 2: configuration
		cfg, cfgErr := loadConfig(nil)
		configPath := viper.ConfigFileUsed()
		switch {
		case cfgErr != nil:
			log.Error(fmt.Sprintf("%s ❌ %v", step(2, "configuration"), cfgErr))
			allChecks = false
		case configPath == "":
			log.Info(fmt.Sprintf("%s ✅ defaults and environment (no config file)", step(2, "configuration")))
		default:
			log.Info(fmt.Sprintf("%s ✅ %s", step(2, "configuration"), configPath), zap.String("config_file", configPath))
		}
		if cfgErr != nil {
			log.Warn("Remaining checks skipped (config not loaded)")
			return
		}

		// Check 3: token
		token := strings.TrimSpace(cfg.GitHub.Token)
		switch {
		case token == "":
			log.Error(fmt.Sprintf("%s ❌ not set (export %sTOKEN or GITHUB_TOKEN)", step(3, "GitHub token"), identity.EnvPrefix))
			allChecks = false
		case !github.ValidateToken(token):
			log.Warn(fmt.Sprintf("%s ⚠️  %s is not a recognised token format", step(3, "GitHub token"), github.MaskToken(token)))
			allChecks = false
		default:
			log.Info(fmt.Sprintf("%s ✅ %s", step(3, "GitHub token"), github.MaskToken(token)))
		}

		// Check 4: commit targets
		if len(cfg.GitHub.Repos) == 0 {
			log.Error(fmt.Sprintf("%s ❌ none configured (github.repos)", step(4, "repositories")))
			allChecks = false
		} else {
			bad := 0
			for _, repo := range cfg.GitHub.Repos {
				if err := engine.ValidateTarget(repo, cfg.GitHub.Branch, cfg.GitHub.Path); err != nil {
					log.Error(fmt.Sprintf("       %s: %v", repo, err))
					bad++
				}
			}
			if bad == 0 {
				log.Info(fmt.Sprintf("%s ✅ %d target(s) on %s:%s", step(4, "repositories"), len(cfg.GitHub.Repos), cfg.GitHub.Branch, cfg.GitHub.Path),
					zap.Strings("repos", cfg.GitHub.Repos))
			} else {
				log.Error(fmt.Sprintf("%s ❌ %d invalid target(s)", step(4, "repositories"), bad))
				allChecks = false
			}
		}

		// Check 5: database
		log.Info(fmt.Sprintf("%s %s", step(5, "database"), describeStore(cfg.Store)))
		a, appErr := newApp(ctx, cfg, log, false)
		if appErr != nil {
			log.Error(fmt.Sprintf("       ❌ cannot open store: %v", appErr))
			log.Warn("Remaining checks skipped (store unavailable)")
			return
		}
		defer a.Close() // nolint:errcheck // best-effort cleanup

		// Check 6: limiter windows
		exhausted := []string{}
		for _, row := range output.LimiterRows(ctx, a.limiters.All()...) {
			if row.Remaining == 0 {
				exhausted = append(exhausted, row.Name)
			}
		}
		if len(exhausted) == 0 {
			log.Info(fmt.Sprintf("%s ✅ capacity available", step(6, "rate limits")))
		} else {
			log.Warn(fmt.Sprintf("%s ⚠️  exhausted: %s", step(6, "rate limits"), strings.Join(exhausted, ", ")))
		}

		// Check 7: activity pattern
		anomaly := a.history.DetectAnomaly(ctx)
		if anomaly.Suspicious {
			log.Warn(fmt.Sprintf("%s ⚠️  %s", step(7, "activity pattern"), anomaly.Reason))
			log.Info("       " + anomaly.Recommendation)
		} else {
			log.Info(fmt.Sprintf("%s ✅ %d recorded commit(s), natural", step(7, "activity pattern"), a.history.Len(ctx)))
		}

		// Check 8: GitHub reachability
		if doctorOnline {
			if err := probeGitHub(ctx, cfg); err != nil {
				log.Error(fmt.Sprintf("%s ❌ %v", step(8, "GitHub access"), err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("%s ✅ %s reachable", step(8, "GitHub access"), cfg.GitHub.Repos[0]))
			}
		}

		log.Info("")
		if allChecks {
			log.Info("✅ All checks passed!")
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("=== End Diagnostics ===")
	},
}

// probeGitHub reads the configured file from the first repository.
func probeGitHub(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateGitHub(); err != nil {
		return err
	}
	client := &github.Client{
		BaseURL:   cfg.GitHub.APIURL,
		Token:     cfg.GitHub.Token,
		UserAgent: userAgent(),
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.GitHub.RequestTimeout)
	defer cancel()
	_, err := client.GetFile(ctx, cfg.GitHub.Repos[0], cfg.GitHub.Path, cfg.GitHub.Branch)
	return err
}

func describeStore(cfg config.StoreConfig) string {
	target, err := store.Resolve(cfg)
	switch {
	case err != nil:
		return fmt.Sprintf("❌ %v", err)
	case target.Remote:
		return "✅ " + target.String() + " (remote)"
	case target.File == "":
		return "✅ " + target.String() + " (in-memory)"
	}

	absPath, _ := filepath.Abs(target.File)
	info, err := os.Stat(absPath)
	switch {
	case err == nil:
		return fmt.Sprintf("✅ %s (%s, modified %s)", absPath, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime())) // #nosec G115 -- file sizes are non-negative
	case os.IsNotExist(err):
		return fmt.Sprintf("⚠️  %s (not created yet)", absPath)
	default:
		return fmt.Sprintf("⚠️  %s (%v)", absPath, err)
	}
}

var (
	doctorInitForce bool
	doctorInitToken string
	doctorInitRepos []string
	doctorShow      bool
	doctorResetConf bool
	doctorResetData bool
	doctorResetAll  bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		token := strings.TrimSpace(doctorInitToken)
		if strings.EqualFold(token, "prompt") {
			value, err := promptForValue(cmd.OutOrStdout(), cmd.InOrStdin(), "Enter GitHub token (leave blank to use the environment): ")
			if err != nil {
				return err
			}
			token = value
		}
		if token != "" && !github.ValidateToken(token) {
			return fmt.Errorf("token %s is not a recognised GitHub token format", github.MaskToken(token))
		}

		// #nosec G301 -- config directories use 0755
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		mode := os.FileMode(0644)
		if token != "" {
			mode = 0600
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig(token, doctorInitRepos)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration paths and effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:    %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if used := viper.ConfigFileUsed(); used != "" && used != configPath {
			log.Info(fmt.Sprintf("  Loaded from:    %s", used))
		}
		log.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))

		identity := GetAppIdentity()
		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{identity.EnvPrefix + "TOKEN", identity.EnvPrefix + "GITHUB_TOKEN", "GITHUB_TOKEN", identity.EnvPrefix + "ADMIN_TOKEN"} {
			log.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}

		if !doctorShow {
			return nil
		}
		return writeEffectiveConfig(cmd.OutOrStdout(), viper.AllSettings())
	},
}

// writeEffectiveConfig prints settings as YAML with secrets masked.
func writeEffectiveConfig(w io.Writer, settings map[string]any) error {
	maskSetting(settings, "github", "token")
	maskSetting(settings, "store", "auth_token")

	payload, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%s", payload)
	return err
}

func maskSetting(settings map[string]any, section, key string) {
	group, ok := settings[section].(map[string]any)
	if !ok {
		return
	}
	if value, ok := group[key].(string); ok && value != "" {
		group[key] = github.MaskToken(value)
	}
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove user configuration and/or the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConf = true
			doctorResetData = true
		}
		if !doctorResetConf && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		log := observability.CLILogger
		if doctorResetConf {
			configPath := config.DefaultConfigPath()
			if err := removeFile(configPath); err != nil {
				return fmt.Errorf("remove config file: %w", err)
			}
			log.Info("Config removed", zap.String("path", configPath))
		}

		if doctorResetData {
			cfg, err := loadConfig(nil)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			target, err := store.Resolve(cfg.Store)
			if err != nil {
				return err
			}
			if target.File == "" {
				return fmt.Errorf("%s is not a local database file; reset is not supported", target)
			}
			absPath, _ := filepath.Abs(target.File)
			if err := removeFile(absPath); err != nil {
				return fmt.Errorf("remove database: %w", err)
			}
			log.Info("Database removed", zap.String("path", absPath))
		}
		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current configuration including the commit target",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if err := cfg.ValidateGitHub(); err != nil {
			return err
		}
		observability.CLILogger.Info("Config is valid", zap.String("path", viper.ConfigFileUsed()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "also read the target file from GitHub")

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitToken, "token", "", "GitHub token, or 'prompt' to enter it")
	doctorInitCmd.Flags().StringSliceVar(&doctorInitRepos, "repo", nil, "repository owner/name (repeatable)")

	doctorConfigCmd.Flags().BoolVar(&doctorShow, "show", false, "print effective settings as YAML (secrets masked)")

	doctorResetCmd.Flags().BoolVar(&doctorResetConf, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func buildInitConfig(token string, repos []string) string {
	lines := []string{
		"# greenstreak config - created by 'greenstreak doctor init'",
		"github:",
	}
	if token != "" {
		lines = append(lines, fmt.Sprintf("  token: %q", token))
	} else {
		lines = append(lines, "  # token: \"\"  # or set GREENSTREAK_TOKEN / GITHUB_TOKEN")
	}
	if len(repos) == 0 {
		lines = append(lines, "  repos: []  # owner/name")
	} else {
		lines = append(lines, "  repos:")
		for _, repo := range repos {
			lines = append(lines, fmt.Sprintf("    - %q", strings.TrimSpace(repo)))
		}
	}
	lines = append(lines,
		"  branch: main",
		"  path: activity.md",
		"schedule:",
		"  mode: safe",
		"  selection: rotation",
		"  safe:",
		"    min_delay: 1h",
		"    max_delay: 4h",
		"    max_commits_per_day: 5",
		"    quiet_start: 22",
		"    quiet_end: 7",
	)
	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(out io.Writer, in io.Reader, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	value, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
