// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Account types.
const (
	AccountLocal    = "local"
	AccountEvernote = "evernote"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Account AccountConfig
	Storage StorageConfig
	Model   ModelConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// AccountConfig describes the account whose tags and notebooks are served.
type AccountConfig struct {
	Name string
	// Type is local or evernote. New entities of a local account are never synchronizable.
	Type string
}

// StorageConfig holds local storage configuration.
type StorageConfig struct {
	Driver   string // badger or sqlite (default: badger)
	Path     string // Directory for badger, file for sqlite (default: ~/.treeview/<driver>)
	InMemory bool   // Keep everything in memory (default: false)
}

// ModelConfig holds tuning for the tree models.
type ModelConfig struct {
	ListPageSize           int    // Entities requested per list page (default: 100)
	LinkedNotebookPageSize int    // Linked notebooks requested per page (default: 40)
	CacheCapacity          int    // Shared entity cache capacity per kind (default: 20)
	MaxResyncAttempts      int    // Find retries after a failed update before marking stale (default: 3)
	Locale                 string // BCP 47 tag for name collation (default: und)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	RateLimit    int           // Mutating requests per minute per client (default: 120)
	CORSOrigins  []string      // Allowed CORS origins (default: any)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("treeview", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	accountName := fs.String("account-name", "", "Account display name")
	accountType := fs.String("account-type", "", "Account type (local, evernote)")

	storageDriver := fs.String("storage-driver", "", "Storage driver (badger, sqlite)")
	storagePath := fs.String("storage-path", "", "Storage location")
	storageInMemory := fs.String("storage-in-memory", "", "Keep storage in memory (default: false)")

	listPageSize := fs.String("list-page-size", "", "Entities per list page (default: 100)")
	lnPageSize := fs.String("linked-notebook-page-size", "", "Linked notebooks per list page (default: 40)")
	cacheCapacity := fs.String("cache-capacity", "", "Entity cache capacity (default: 20)")
	maxResync := fs.String("max-resync-attempts", "", "Find retries after failed update (default: 3)")
	locale := fs.String("locale", "", "Collation locale (default: und)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	rateLimit := fs.String("rate-limit", "", "Mutating requests per minute (default: 120)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed CORS origins (default: any)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine. godotenv never overrides variables already set.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Account: AccountConfig{
			Name: getConfigValue(*accountName, "ACCOUNT_NAME", "Default"),
			Type: getConfigValue(*accountType, "ACCOUNT_TYPE", AccountLocal),
		},
		Storage: StorageConfig{
			Driver:   getConfigValue(*storageDriver, "STORAGE_DRIVER", DriverBadger),
			Path:     getConfigValue(*storagePath, "STORAGE_PATH", ""),
			InMemory: getBoolConfigValue(*storageInMemory, "STORAGE_IN_MEMORY", false),
		},
		Model: ModelConfig{
			ListPageSize:           getIntConfigValue(*listPageSize, "LIST_PAGE_SIZE", 100),
			LinkedNotebookPageSize: getIntConfigValue(*lnPageSize, "LINKED_NOTEBOOK_PAGE_SIZE", 40),
			CacheCapacity:          getIntConfigValue(*cacheCapacity, "CACHE_CAPACITY", 20),
			MaxResyncAttempts:      getIntConfigValue(*maxResync, "MAX_RESYNC_ATTEMPTS", 3),
			Locale:                 getConfigValue(*locale, "LOCALE", "und"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			RateLimit:   getIntConfigValue(*rateLimit, "SERVER_RATE_LIMIT", 120),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "SERVER_CORS_ORIGINS", "")),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if err := cfg.expandStoragePath(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Account.Type {
	case AccountLocal, AccountEvernote:
	default:
		return fmt.Errorf("invalid account type: %s (must be local or evernote)", c.Account.Type)
	}

	switch c.Storage.Driver {
	case DriverBadger, DriverSQLite:
	default:
		return fmt.Errorf("invalid storage driver: %s (must be badger or sqlite)", c.Storage.Driver)
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		return errors.New("storage path cannot be empty after expansion")
	}

	positives := []struct {
		name  string
		value int
	}{
		{"list page size", c.Model.ListPageSize},
		{"linked notebook page size", c.Model.LinkedNotebookPageSize},
		{"cache capacity", c.Model.CacheCapacity},
		{"rate limit", c.Server.RateLimit},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if c.Model.MaxResyncAttempts < 0 {
		return fmt.Errorf("max resync attempts must not be negative, got %d", c.Model.MaxResyncAttempts)
	}

	return nil
}

// Synchronizable reports whether entities created in this account start out synchronizable.
func (a AccountConfig) Synchronizable() bool {
	return a.Type == AccountEvernote
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
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

// expandStoragePath resolves the storage location. In-memory storage keeps an empty path.
func (c *Config) expandStoragePath() error {
	if c.Storage.InMemory {
		c.Storage.Path = ""
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".treeview", c.Storage.Driver)
	if c.Storage.Driver == DriverSQLite {
		defaultPath = filepath.Join(defaultPath, "treeview.db")
	}

	expanded, err := expandPath(c.Storage.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.Path = expanded
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

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
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
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return d, nil
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
