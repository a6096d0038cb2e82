// Package config loads harness configuration.
//
// The values are read by viper from a config file or environment variables.
// The make-style variables of the original harness (V, CC, CFLAGS, LIBS,
// HEADERS) are honored both as bare environment variables and as
// command-line VAR=VALUE overrides.
package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the harness.
type Config struct {
	Toolchain ToolchainConfig `mapstructure:"toolchain"`
	Build     BuildConfig     `mapstructure:"build"`
	History   HistoryConfig   `mapstructure:"history"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// ToolchainConfig stores compiler and linker settings.
//
// CFlags and Libs are whitespace-separated flag strings, matching the
// original variable semantics, and are split only when argv is assembled.
type ToolchainConfig struct {
	CC      string `mapstructure:"cc"`
	CFlags  string `mapstructure:"cflags"`
	Headers string `mapstructure:"headers"` // include directory; no default
	Libs    string `mapstructure:"libs"`
}

// BuildConfig stores build-stage settings.
type BuildConfig struct {
	Dir     string `mapstructure:"dir"`     // build root
	Jobs    int    `mapstructure:"jobs"`    // max parallel compilations; 0 = NumCPU
	Verbose string `mapstructure:"verbose"` // the V variable; any non-empty value echoes commands
}

// HistoryConfig stores the optional build-ledger settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WatchConfig stores filesystem-watch settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	RunTests bool          `mapstructure:"run_tests"` // run the suite after each rebuild
}

// Load reads configuration from file or environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("harness")
		v.SetConfigType("yaml")
	}

	v.SetDefault("toolchain.cc", "cc")
	v.SetDefault("toolchain.cflags", "-std=c11 -Wall -Wextra -MMD -MP")
	v.SetDefault("toolchain.libs", "-lsqlite3")
	v.SetDefault("build.dir", ".")
	v.SetDefault("build.jobs", 0)
	v.SetDefault("build.verbose", "")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", ".sqlharness/history.db")
	v.SetDefault("watch.debounce", "250ms")
	v.SetDefault("watch.run_tests", false)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bare make-style environment variables take effect without prefixes.
	_ = v.BindEnv("build.verbose", "V")
	_ = v.BindEnv("toolchain.cc", "CC")
	_ = v.BindEnv("toolchain.cflags", "CFLAGS")
	_ = v.BindEnv("toolchain.libs", "LIBS")
	_ = v.BindEnv("toolchain.headers", "HEADERS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment are used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

// ApplyOverride applies one make-style VAR=VALUE override.
func (c *Config) ApplyOverride(key, value string) error {
	switch strings.ToUpper(key) {
	case "V":
		c.Build.Verbose = value
	case "CC":
		c.Toolchain.CC = value
	case "CFLAGS":
		c.Toolchain.CFlags = value
	case "LIBS":
		c.Toolchain.Libs = value
	case "HEADERS":
		c.Toolchain.Headers = value
	case "JOBS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid JOBS value %q: %w", value, err)
		}
		c.Build.Jobs = n
	default:
		return fmt.Errorf("unknown variable %q", key)
	}
	return nil
}

// Jobs returns the effective compile parallelism.
func (c *Config) Jobs() int {
	if c.Build.Jobs > 0 {
		return c.Build.Jobs
	}
	return runtime.NumCPU()
}

// Validate checks the configuration for an action. Actions that compile
// require a headers directory; there is deliberately no default for it.
func (c *Config) Validate(needsBuild bool) error {
	if c.Toolchain.CC == "" {
		return fmt.Errorf("toolchain.cc must not be empty")
	}
	if c.Build.Jobs < 0 {
		return fmt.Errorf("build.jobs must not be negative")
	}
	if needsBuild && c.Toolchain.Headers == "" {
		return fmt.Errorf("HEADERS is not set: the database library include path is required to compile")
	}
	return nil
}
