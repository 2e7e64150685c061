// Package config loads worker settings from YAML, with defaults for every field.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cuemby/minicluster/pkg/objstore"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// DefaultFileName is looked up in the working directory when no path is given
const DefaultFileName = "minicluster.yaml"

type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
	MaxAttempts  int    `yaml:"max_attempts,omitempty"`
}

type CacheConfig struct {
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the worker configuration
type Config struct {
	Listen        ListenConfig  `yaml:"listen"`
	DataDir       string        `yaml:"data_dir"`
	Storage       StorageConfig `yaml:"storage"`
	Cache         CacheConfig   `yaml:"cache"`
	Log           LogConfig     `yaml:"log"`
	MetricsAddr   string        `yaml:"metrics_addr,omitempty"`
	HonorShutdown bool          `yaml:"honor_shutdown"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Host: "127.0.0.1", Port: 8080},
		DataDir: "/tmp/mini-cluster-worker",
		Storage: StorageConfig{
			Region:      "us-east-1",
			MaxAttempts: 3,
		},
		Cache:         CacheConfig{FetchConcurrency: 4},
		Log:           LogConfig{Level: "info"},
		HonorShutdown: true,
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, ErrConfigNotFound
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the worker cannot start with
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen port %d out of range 1-65535", c.Listen.Port)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Cache.FetchConcurrency < 1 {
		return fmt.Errorf("cache.fetch_concurrency must be at least 1, got %d", c.Cache.FetchConcurrency)
	}
	if c.Storage.MaxAttempts < 0 {
		return fmt.Errorf("storage.max_attempts must not be negative, got %d", c.Storage.MaxAttempts)
	}
	return nil
}

// Addr returns host:port for the listener
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// CacheDir is the root under which objects are localized as <bucket>/<key>
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// DatabasePath is the embedded store file, kept inside the cache so that
// clearing the cache also clears loaded tables
func (c *Config) DatabasePath() string {
	return filepath.Join(c.CacheDir(), "db.sqlite")
}

// LedgerPath is the job ledger file
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "jobs.db")
}

// S3 returns the object store settings in the form objstore expects
func (c *Config) S3() objstore.S3Config {
	return objstore.S3Config{
		Region:       c.Storage.Region,
		Endpoint:     c.Storage.Endpoint,
		UsePathStyle: c.Storage.UsePathStyle,
		MaxAttempts:  c.Storage.MaxAttempts,
	}
}
