package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dungnx/chathist/internal/file"
)

var defaultConfig = Config{
	Port:     3002,
	Database: "~/.config/chathist/chathist.db",

	Provider: &ProviderConfig{
		Name:         "openai",
		APIHost:      "https://api.openai.com/v1",
		DefaultModel: "gpt-4o-mini",
	},

	RequestTimeoutSeconds:    30,
	AttachmentTimeoutSeconds: 60,
}

// Config holds configuration for chathist.
type Config struct {
	// Port the HTTP API listens on.
	Port int `json:"port"`
	// Database is the SQLite file path. Ignored when DatabaseURL is set.
	Database string `json:"database"`
	// DatabaseURL, when non-empty, selects the Postgres backend.
	DatabaseURL string `json:"database_url"`

	Provider *ProviderConfig `json:"provider"`

	// RequestTimeoutSeconds bounds text-only completion calls.
	RequestTimeoutSeconds int `json:"request_timeout"`
	// AttachmentTimeoutSeconds bounds attachment-bearing completion calls.
	AttachmentTimeoutSeconds int `json:"attachment_timeout"`
}

// ProviderConfig holds the completion provider settings.
type ProviderConfig struct {
	// Name of the provider: "openai" or "anthropic".
	Name string `json:"name"`
	// APIKey may be left empty and supplied via environment instead.
	APIKey       string `json:"api_key"`
	APIHost      string `json:"api_host"`
	DefaultModel string `json:"default_model"`
}

// Parse a configuration file, creating it with defaults if absent.
// Secrets and the database URL can be overridden from the environment
// (OPENAI_API_KEY / ANTHROPIC_API_KEY / CHATHIST_DATABASE_URL).
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}
	applyDefaults(config)

	expandedDatabasePath, err := file.ExpandPath(config.Database)
	if err != nil {
		return nil, errors.Wrap(err, "expanding database path")
	}
	config.Database = expandedDatabasePath

	applyEnvironment(config)
	return config, nil
}

// applyDefaults backfills fields a hand-edited config file may omit.
// A zero port or timeout is never usable, so zero means "default".
func applyDefaults(config *Config) {
	if config.Port == 0 {
		config.Port = defaultConfig.Port
	}
	if config.Database == "" {
		config.Database = defaultConfig.Database
	}
	if config.RequestTimeoutSeconds == 0 {
		config.RequestTimeoutSeconds = defaultConfig.RequestTimeoutSeconds
	}
	if config.AttachmentTimeoutSeconds == 0 {
		config.AttachmentTimeoutSeconds = defaultConfig.AttachmentTimeoutSeconds
	}
	if config.Provider == nil {
		provider := *defaultConfig.Provider
		config.Provider = &provider
		return
	}
	if config.Provider.DefaultModel == "" {
		config.Provider.DefaultModel = defaultConfig.Provider.DefaultModel
	}
	if config.Provider.APIHost == "" && config.Provider.Name == defaultConfig.Provider.Name {
		config.Provider.APIHost = defaultConfig.Provider.APIHost
	}
}

func applyEnvironment(config *Config) {
	if v := os.Getenv("CHATHIST_DATABASE_URL"); v != "" {
		config.DatabaseURL = v
	}
	if config.Provider.APIKey != "" {
		return
	}
	switch config.Provider.Name {
	case "anthropic":
		config.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	default:
		config.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(path, bytes, 0644); err != nil {
		return errors.Wrap(err, "writing file")
	}
	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	exists, err := file.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
