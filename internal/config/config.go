// Package config builds the single configuration object ponder runs with.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

// Environment variables consulted by Load.
const (
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvBaseURL  = "OPENAI_BASE_URL"
	EnvModel    = "PONDER_MODEL"
	EnvRounds   = "PONDER_ROUNDS"
	EnvStore    = "PONDER_STORE"
	EnvStoreDir = "PONDER_STORE_DIR"
	EnvLogLevel = "PONDER_LOG_LEVEL"
)

// Duration is a time.Duration written to and read from JSON as a string
// such as "90s". Bare numbers are read as nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return apperrors.Validation("request_timeout", "%v", err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return apperrors.Validation("request_timeout", "want a duration string, got %s", data)
	}
	return nil
}

type Config struct {
	// APIKey is never written to disk by Save.
	APIKey            string   `json:"-"`
	BaseURL           string   `json:"base_url,omitempty"`
	Model             string   `json:"model"`
	Rounds            int      `json:"rounds"`
	ReasoningTokenCap int      `json:"reasoning_token_cap"`
	RequestTimeout    Duration `json:"request_timeout"`
	StoreKind         string   `json:"store"`
	StoreDir          string   `json:"store_dir"`
	MaxFileSize       int64    `json:"max_file_size"`
	LogLevel          string   `json:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:             "gpt-4o-mini",
		Rounds:            3,
		ReasoningTokenCap: 1024,
		RequestTimeout:    Duration(2 * time.Minute),
		StoreKind:         StoreFile,
		StoreDir:          defaultStoreDir(),
		MaxFileSize:       1 << 20,
		LogLevel:          "info",
	}
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".ponder", "conversations")
	}
	return filepath.Join(home, ".ponder", "conversations")
}

// DefaultPath is the config file consulted when none is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "ponder.json"
	}
	return filepath.Join(home, ".ponder", "config.json")
}

// Load layers defaults, the JSON file at path (if it exists), a .env file in
// the working directory and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, apperrors.IO("read config", path, err)
		}
	}

	// godotenv.Load never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvRounds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.Validation(EnvRounds, "not an integer: %q", v)
		}
		c.Rounds = n
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.StoreKind = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStoreDir); v != "" {
		c.StoreDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// Save writes the config as JSON, creating parent directories. An existing
// file is never overwritten.
func (c *Config) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		return apperrors.Validation("config", "%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.IO("create config dir", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return apperrors.IO("write config", path, err)
	}
	return nil
}

// Validate checks the settings every remote operation needs.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &apperrors.ValidationError{Field: "credential", Msg: EnvAPIKey + " is not set"}
	}
	if c.Rounds < 1 {
		return apperrors.Validation("rounds", "must be at least 1, got %d", c.Rounds)
	}
	if c.Model == "" {
		return apperrors.Validation("model", "must not be empty")
	}
	if c.ReasoningTokenCap < 1 {
		return apperrors.Validation("reasoning_token_cap", "must be positive, got %d", c.ReasoningTokenCap)
	}
	if c.RequestTimeout < 0 {
		return apperrors.Validation("request_timeout", "must not be negative, got %s", time.Duration(c.RequestTimeout))
	}
	switch c.StoreKind {
	case StoreFile, StoreSQLite, StoreBolt:
	default:
		return apperrors.Validation("store", "unknown backend %q (want file, sqlite or bolt)", c.StoreKind)
	}
	return nil
}
