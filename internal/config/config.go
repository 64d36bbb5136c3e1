// Package config provides application configuration with support for command-line
// flags, environment variables, .env files and an optional TOML config file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig        `toml:"app"`
	Logger     LoggerConfig     `toml:"logger"`
	Storage    StorageConfig    `toml:"storage"`
	Server     ServerConfig     `toml:"server"`
	Catalog    CatalogConfig    `toml:"catalog"`
	TextGen    TextGenConfig    `toml:"textgen"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
}

// Duration is a time.Duration read from text such as "250ms" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `toml:"environment"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `toml:"level"`
}

// StorageConfig selects the persistent key-value backend.
type StorageConfig struct {
	Backend  string `toml:"backend"`   // badger, sqlite or memory
	DataPath string `toml:"data_path"` // directory holding the store and search index
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `toml:"port"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	IdleTimeout    Duration `toml:"idle_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CatalogConfig configures the public book catalog client.
type CatalogConfig struct {
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"` // optional
	MaxResults int      `toml:"max_results"`
	Timeout    Duration `toml:"timeout"`
}

// TextGenConfig configures the chat-completions client.
type TextGenConfig struct {
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"` // optional; enrichment degrades without it
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature float64  `toml:"temperature"` // 0 is honoured
	Timeout     Duration `toml:"timeout"`
}

// EnrichmentConfig tunes the enrichment orchestrator.
type EnrichmentConfig struct {
	Enabled             bool     `toml:"enabled"`
	CompletionThreshold int      `toml:"completion_threshold"`
	MaxFieldsPerPass    int      `toml:"max_fields_per_pass"`
	FieldDelay          Duration `toml:"field_delay"`
	ItemDelay           Duration `toml:"item_delay"`
	RetryDelay          Duration `toml:"retry_delay"`
	MaxRetries          int      `toml:"max_retries"`
	BatchSize           int      `toml:"batch_size"`
	ProcessInterval     Duration `toml:"process_interval"` // 0 disables the background worker
	FallbackPath        string   `toml:"fallback_path"`    // optional YAML fallback content
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{Backend: "badger"},
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    Duration{15 * time.Second},
			WriteTimeout:   Duration{15 * time.Second},
			IdleTimeout:    Duration{60 * time.Second},
			AllowedOrigins: []string{"*"},
		},
		Catalog: CatalogConfig{
			BaseURL:    "https://www.googleapis.com/books/v1",
			MaxResults: 20,
			Timeout:    Duration{15 * time.Second},
		},
		TextGen: TextGenConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   800,
			Temperature: 0.7,
			Timeout:     Duration{60 * time.Second},
		},
		Enrichment: EnrichmentConfig{
			Enabled:             true,
			CompletionThreshold: 80,
			MaxFieldsPerPass:    3,
			FieldDelay:          Duration{time.Second},
			ItemDelay:           Duration{2 * time.Second},
			RetryDelay:          Duration{30 * time.Second},
			MaxRetries:          3,
			BatchSize:           5,
			ProcessInterval:     Duration{5 * time.Minute},
		},
	}
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. TOML config file.
// 5. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("shelfwise", flag.ContinueOnError)

	configFile := fs.String("config", "", "Path to TOML config file")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	storageBackend := fs.String("storage", "", "Storage backend (badger, sqlite, memory)")
	dataPath := fs.String("data-path", "", "Directory for the database and search index")
	port := fs.String("port", "", "Server port (default: 8080)")
	catalogURL := fs.String("catalog-url", "", "Book catalog API base URL")
	textgenURL := fs.String("textgen-url", "", "Chat completions API base URL")
	textgenModel := fs.String("textgen-model", "", "Chat completions model")
	enrichEnabled := fs.String("enrichment", "", "Enable AI enrichment (default: true)")
	fallbackPath := fs.String("fallback-path", "", "YAML file with fallback enrichment content")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg := Default()

	if path := getConfigValue(*configFile, "SHELFWISE_CONFIG", ""); path != "" {
		if err := cfg.loadTOML(path); err != nil {
			return nil, err
		}
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg.App.Environment = getConfigValue(*env, "ENV", cfg.App.Environment)
	cfg.Logger.Level = getConfigValue(*logLevel, "LOG_LEVEL", cfg.Logger.Level)
	cfg.Storage.Backend = getConfigValue(*storageBackend, "STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.DataPath = getConfigValue(*dataPath, "DATA_PATH", cfg.Storage.DataPath)
	cfg.Server.Port = getConfigValue(*port, "SERVER_PORT", cfg.Server.Port)
	cfg.Catalog.BaseURL = getConfigValue(*catalogURL, "CATALOG_BASE_URL", cfg.Catalog.BaseURL)
	cfg.Catalog.APIKey = getConfigValue("", "CATALOG_API_KEY", cfg.Catalog.APIKey)
	cfg.TextGen.BaseURL = getConfigValue(*textgenURL, "TEXTGEN_BASE_URL", cfg.TextGen.BaseURL)
	cfg.TextGen.Model = getConfigValue(*textgenModel, "TEXTGEN_MODEL", cfg.TextGen.Model)
	cfg.TextGen.APIKey = getConfigValue("", "TEXTGEN_API_KEY", cfg.TextGen.APIKey)
	cfg.Enrichment.Enabled = getBoolConfigValue(*enrichEnabled, "ENRICHMENT_ENABLED", cfg.Enrichment.Enabled)
	cfg.Enrichment.FallbackPath = getConfigValue(*fallbackPath, "ENRICHMENT_FALLBACK_PATH", cfg.Enrichment.FallbackPath)
	cfg.Enrichment.BatchSize = getIntConfigValue("", "ENRICHMENT_BATCH_SIZE", cfg.Enrichment.BatchSize)
	cfg.Enrichment.MaxRetries = getIntConfigValue("", "ENRICHMENT_MAX_RETRIES", cfg.Enrichment.MaxRetries)

	var err error
	if cfg.Enrichment.RetryDelay, err = getDurationConfigValue("ENRICHMENT_RETRY_DELAY", cfg.Enrichment.RetryDelay); err != nil {
		return nil, err
	}
	if cfg.Enrichment.ProcessInterval, err = getDurationConfigValue("ENRICHMENT_PROCESS_INTERVAL", cfg.Enrichment.ProcessInterval); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadTOML overlays values from a TOML file onto the receiver.
func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- config path is operator supplied
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case "badger", "sqlite":
		if c.Storage.DataPath == "" {
			return errors.New("data path cannot be empty for persistent storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %q (must be badger, sqlite, or memory)", c.Storage.Backend)
	}

	if c.Catalog.BaseURL == "" {
		return errors.New("catalog base URL is required")
	}
	if c.TextGen.BaseURL == "" {
		return errors.New("text generation base URL is required")
	}
	if c.TextGen.Temperature < 0 || c.TextGen.Temperature > 2 {
		return fmt.Errorf("text generation temperature %g out of range 0..2", c.TextGen.Temperature)
	}

	e := c.Enrichment
	if e.CompletionThreshold < 0 || e.CompletionThreshold > 100 {
		return fmt.Errorf("completion threshold %d out of range 0..100", e.CompletionThreshold)
	}
	if e.MaxFieldsPerPass < 1 {
		return errors.New("max fields per pass must be at least 1")
	}
	if e.MaxRetries < 1 {
		return errors.New("max retries must be at least 1")
	}
	if e.BatchSize < 1 {
		return errors.New("batch size must be at least 1")
	}
	if e.FieldDelay.Duration < 0 || e.ItemDelay.Duration < 0 || e.RetryDelay.Duration < 0 || e.ProcessInterval.Duration < 0 {
		return errors.New("enrichment delays cannot be negative")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults to ~/.local/share/shelfwise for persistent backends.
func (c *Config) expandDataPath() error {
	if c.Storage.Backend == "memory" && c.Storage.DataPath == "" {
		return nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, ".local", "share", "shelfwise"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationConfigValue(envKey string, defaultValue Duration) (Duration, error) {
	strValue := os.Getenv(envKey)
	if strValue == "" {
		return defaultValue, nil
	}
	var d Duration
	if err := d.UnmarshalText([]byte(strValue)); err != nil {
		return Duration{}, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars already set take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
