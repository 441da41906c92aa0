// Package config loads shelf settings from a YAML or TOML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL       = "http://127.0.0.1:5000"
	DefaultTimeout      = 30 * time.Second
	DefaultScale        = 1.5
	DefaultSyncInterval = 2 * time.Second
)

type Config struct {
	API     APIConfig     `yaml:"api" toml:"api"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Reader  ReaderConfig  `yaml:"reader" toml:"reader"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Token   string        `yaml:"token" toml:"token"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

type StorageConfig struct {
	// DataDir holds the local database and the book cache
	DataDir string `yaml:"data_dir" toml:"data_dir"`
}

type ReaderConfig struct {
	Scale        float64       `yaml:"scale" toml:"scale"`
	SyncInterval time.Duration `yaml:"-" toml:"-"`

	SyncIntervalRaw string `yaml:"sync_interval" toml:"sync_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	// File is relative to the data dir unless absolute
	File string `yaml:"file" toml:"file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: DefaultTimeout,
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(home, ".shelf"),
		},
		Reader: ReaderConfig{
			Scale:        DefaultScale,
			SyncInterval: DefaultSyncInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "shelf.log",
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load builds the configuration. An empty path skips the file; a .env in the
// working directory is loaded when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := envPattern.ReplaceAllStringFunc(string(raw), func(m string) string {
			return os.Getenv(envPattern.FindStringSubmatch(m)[1])
		})

		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing TOML config: %w", err)
			}
		case ".yaml", ".yml", "":
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
	}

	applyEnv(cfg)

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SHELF_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SHELF_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("SHELF_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SHELF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *Config) parseDurations() error {
	if c.API.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout: %w", err)
		}
		c.API.Timeout = d
	}
	if c.Reader.SyncIntervalRaw != "" {
		d, err := time.ParseDuration(c.Reader.SyncIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing reader.sync_interval: %w", err)
		}
		c.Reader.SyncInterval = d
	}
	return nil
}

// Validate checks the values that would otherwise fail late
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if c.Reader.Scale < 0.5 || c.Reader.Scale > 3 {
		return fmt.Errorf("reader.scale must be between 0.5 and 3, got %v", c.Reader.Scale)
	}
	if c.Reader.SyncInterval <= 0 {
		return errors.New("reader.sync_interval must be positive")
	}
	return nil
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "shelf.db")
}

func (c *Config) CacheDir() string {
	return filepath.Join(c.Storage.DataDir, "cache")
}

func (c *Config) ExportDir() string {
	return filepath.Join(c.Storage.DataDir, "exports")
}

func (c *Config) LogPath() string {
	if c.Logging.File == "" || filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(c.Storage.DataDir, c.Logging.File)
}
