// Package config handles configuration loading for dartfin.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	DART     DARTConfig     `mapstructure:"dart"     yaml:"dart"     json:"dart"`
	Accounts AccountsConfig `mapstructure:"accounts" yaml:"accounts" json:"accounts"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"      json:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`
}

// DARTConfig holds OpenDART client settings.
type DARTConfig struct {
	APIKey            string `mapstructure:"api_key"            yaml:"api_key" json:"-"`
	BaseURL           string `mapstructure:"base_url"           yaml:"base_url" json:"base_url"`
	TimeoutSec        int    `mapstructure:"timeout_sec"        yaml:"timeout_sec" json:"timeout_sec"`
	RateLimit         int    `mapstructure:"rate_limit"         yaml:"rate_limit" json:"rate_limit"`         // requests per window
	RateWindowMs      int    `mapstructure:"rate_window_ms"     yaml:"rate_window_ms" json:"rate_window_ms"` // window length
	ConcurrentFetches int    `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches" json:"concurrent_fetches"`
	CorpCodeFile      string `mapstructure:"corp_code_file"     yaml:"corp_code_file" json:"corp_code_file"` // local CORPCODE.xml or zip
	CorpCodeTTLSec    int    `mapstructure:"corp_code_ttl_sec"  yaml:"corp_code_ttl_sec" json:"corp_code_ttl_sec"`
	FeedURL           string `mapstructure:"feed_url"           yaml:"feed_url" json:"feed_url"`
}

// Timeout returns the HTTP timeout as a duration.
func (d DARTConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSec) * time.Second
}

// RateWindow returns the rate-limit window as a duration.
func (d DARTConfig) RateWindow() time.Duration {
	return time.Duration(d.RateWindowMs) * time.Millisecond
}

// CorpCodeTTL returns how long a downloaded corp-code table stays valid.
func (d DARTConfig) CorpCodeTTL() time.Duration {
	return time.Duration(d.CorpCodeTTLSec) * time.Second
}

// AccountsConfig points at an optional replacement concept/alias table.
type AccountsConfig struct {
	ConceptsFile string `mapstructure:"concepts_file" yaml:"concepts_file" json:"concepts_file"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host" json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level" json:"level"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Pretty reports whether console (text) output was requested.
func (l LoggingConfig) Pretty() bool { return l.Format == "text" }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml
//  2. ~/.dartfin/config.yaml
//  3. /etc/dartfin/config.yaml
//
// Environment variables override config file values.
// Format: DARTFIN_<SECTION>_<KEY>, e.g. DARTFIN_DART_API_KEY.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".dartfin"))
	v.AddConfigPath("/etc/dartfin")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DARTFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dart.base_url", "https://opendart.fss.or.kr/api")
	v.SetDefault("dart.timeout_sec", 30)
	// Bursts over the per-key limit are rejected with status 020.
	v.SetDefault("dart.rate_limit", 10)
	v.SetDefault("dart.rate_window_ms", 1000)
	v.SetDefault("dart.concurrent_fetches", 4)
	v.SetDefault("dart.corp_code_ttl_sec", 86400)
	v.SetDefault("dart.feed_url", "https://dart.fss.or.kr/api/todayRSS.xml")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// DART_API_KEY is honoured for compatibility with existing deployments;
// the prefixed variable wins when both are set.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvDARTKeyLegacy); key != "" {
		cfg.DART.APIKey = key
	}
	if key := os.Getenv(EnvDARTKey); key != "" {
		cfg.DART.APIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
