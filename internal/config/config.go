package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "vidres"
	AppTagline     = "Video resource resolver"
	AppDescription = "Classifies video URLs, resolves their metadata and finds a playable source"
	AppProjectURL  = "https://github.com/glebovdev/vidres"

	ConfigDir      = ".config/vidres"
	ConfigFileName = "config.yml"

	DefaultSniffTimeout = 6 * time.Second
	DefaultSniffRPS     = 2.0
	DefaultProbeTimeout = 5 * time.Second
	DefaultLoadTimeout  = 15 * time.Second
	DefaultRetryDelay   = time.Second
	DefaultBatchLimit   = 5
	MaxBatchLimit       = 32
	DefaultCacheSize    = 256
	DefaultCacheTTL     = 24 * time.Hour
)

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/vidres/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Config struct {
	// Origin is the host the player is served from; other hosts are cross-origin.
	Origin string `yaml:"origin"`
	// Proxies are endpoint templates containing {url}, tried in order.
	Proxies     []string `yaml:"proxies"`
	UserAgent   string   `yaml:"user_agent"`
	BilibiliAPI string   `yaml:"bilibili_api"`

	SniffTimeout time.Duration `yaml:"sniff_timeout"`
	SniffRPS     float64       `yaml:"sniff_rps"`
	ProbeEnabled bool          `yaml:"probe_enabled"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	LoadTimeout  time.Duration `yaml:"load_timeout"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	BatchLimit   int           `yaml:"batch_limit"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

func Load() (*Config, error) {
	return LoadFs(afero.NewOsFs())
}

// LoadFs reads the config from fsys. A missing file yields the defaults.
func LoadFs(fsys afero.Fs) (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	exists, err := afero.Exists(fsys, configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		return DefaultConfig(), nil
	}

	data, err := afero.ReadFile(fsys, configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

func (c *Config) Save() error {
	return c.SaveFs(afero.NewOsFs())
}

// SaveFs writes the configuration atomically using temp file + rename.
func (c *Config) SaveFs(fsys afero.Fs) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := fsys.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := afero.TempFile(fsys, configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fsys.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Origin:       "",
		Proxies:      nil,
		UserAgent:    "",
		BilibiliAPI:  "",
		SniffTimeout: DefaultSniffTimeout,
		SniffRPS:     DefaultSniffRPS,
		ProbeEnabled: true,
		ProbeTimeout: DefaultProbeTimeout,
		LoadTimeout:  DefaultLoadTimeout,
		RetryDelay:   DefaultRetryDelay,
		BatchLimit:   DefaultBatchLimit,
		CacheSize:    DefaultCacheSize,
		CacheTTL:     DefaultCacheTTL,
	}
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	if c.SniffTimeout <= 0 {
		c.SniffTimeout = DefaultSniffTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	c.BatchLimit = ClampBatchLimit(c.BatchLimit)
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// ClampBatchLimit keeps the batch limit within [1, MaxBatchLimit], using the
// default for unset values.
func ClampBatchLimit(n int) int {
	if n <= 0 {
		return DefaultBatchLimit
	}
	if n > MaxBatchLimit {
		return MaxBatchLimit
	}
	return n
}
