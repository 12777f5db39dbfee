package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"subaudit/internal/engine"
)

// Config holds application configuration.
type Config struct {
	Log    LogConfig
	Scan   ScanConfig
	Gmail  GmailConfig
	Oracle OracleConfig
	// Categories maps a domain or merchant keyword to a category name.
	// Data, not logic: adding a provider is a config edit.
	Categories map[string]string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// ScanConfig holds pipeline thresholds and vocabulary.
type ScanConfig struct {
	Days             int
	MaxResults       int
	Workers          int
	UnusedAfterDays  int
	TrialHorizonDays int
	TrialLengthDays  int
	PriceTolerance   float64
	Queries          []string
	Providers        []string
}

// GmailConfig holds connector settings.
type GmailConfig struct {
	CredentialsPath   string
	TokenPath         string
	RequestsPerSecond float64
	MaxRetries        int
}

// OracleConfig holds assistant settings. Region and Profile are passed
// through to the provider untouched.
type OracleConfig struct {
	Provider  string
	Model     string
	APIKeyEnv string
	APIKey    string
	Region    string
	Profile   string
}

// Load reads configuration from file and env. Env var overrides use
// prefix SUBAUDIT_.
func Load() (Config, error) {
	v := viper.New()

	configDir := filepath.Join(os.Getenv("HOME"), ".config", "subaudit")

	v.SetDefault("log.level", "info")
	v.SetDefault("scan.days", 365)
	v.SetDefault("scan.max_results", 500)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.unused_after_days", 60)
	v.SetDefault("scan.trial_horizon_days", 7)
	v.SetDefault("scan.trial_length_days", 14)
	v.SetDefault("scan.price_tolerance", 0.05)
	v.SetDefault("scan.queries", []string{})
	v.SetDefault("scan.providers", []string{})
	v.SetDefault("gmail.credentials_path", filepath.Join(configDir, "credentials.json"))
	v.SetDefault("gmail.token_path", filepath.Join(configDir, "token.json"))
	v.SetDefault("gmail.requests_per_second", 5.0)
	v.SetDefault("gmail.max_retries", 3)
	v.SetDefault("oracle.provider", "heuristic")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("oracle.api_key", "")

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("SUBAUDIT_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SUBAUDIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// CategoryTable merges configured entries over the built-in table.
// Entries with unrecognized category names are skipped with a warning
// rather than failing the run.
func (c Config) CategoryTable() map[string]engine.Category {
	table := engine.DefaultCategoryTable()
	for key, name := range c.Categories {
		cat := engine.ParseCategory(name)
		if cat == "" {
			slog.Warn("ignoring category entry with unknown category", "key", key, "category", name)
			continue
		}
		table[strings.ToLower(strings.TrimSpace(key))] = cat
	}
	return table
}

// ResolveOracleKey returns the assistant API key: env var first, then
// the config file value.
func (c Config) ResolveOracleKey() string {
	env := strings.TrimSpace(c.Oracle.APIKeyEnv)
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return strings.TrimSpace(c.Oracle.APIKey)
}
