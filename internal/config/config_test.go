package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.SniffTimeout != DefaultSniffTimeout {
		t.Errorf("DefaultConfig().SniffTimeout = %v, want %v", cfg.SniffTimeout, DefaultSniffTimeout)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("DefaultConfig().ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.BatchLimit != 5 {
		t.Errorf("DefaultConfig().BatchLimit = %d, want 5", cfg.BatchLimit)
	}
	if cfg.Origin != "" {
		t.Errorf("DefaultConfig().Origin = %q, want empty string", cfg.Origin)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	fs := afero.NewMemMapFs()

	testCfg := DefaultConfig()
	testCfg.Origin = "https://myapp.com"
	testCfg.Proxies = []string{"https://p.example/?u={url}"}
	testCfg.SniffTimeout = 7 * time.Second
	testCfg.BatchLimit = 3

	if err := testCfg.SaveFs(fs); err != nil {
		t.Fatalf("SaveFs() error = %v", err)
	}

	configPath := filepath.Join("/home/test", ConfigDir, ConfigFileName)
	if exists, _ := afero.Exists(fs, configPath); !exists {
		t.Fatalf("Config file was not created at %s", configPath)
	}

	loadedCfg, err := LoadFs(fs)
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}

	if loadedCfg.Origin != testCfg.Origin {
		t.Errorf("Origin = %q, want %q", loadedCfg.Origin, testCfg.Origin)
	}
	if len(loadedCfg.Proxies) != 1 || loadedCfg.Proxies[0] != testCfg.Proxies[0] {
		t.Errorf("Proxies = %v, want %v", loadedCfg.Proxies, testCfg.Proxies)
	}
	if loadedCfg.SniffTimeout != 7*time.Second {
		t.Errorf("SniffTimeout = %v, want 7s", loadedCfg.SniffTimeout)
	}
	if loadedCfg.BatchLimit != 3 {
		t.Errorf("BatchLimit = %d, want 3", loadedCfg.BatchLimit)
	}

	files, _ := afero.ReadDir(fs, filepath.Dir(configPath))
	if len(files) != 1 {
		t.Errorf("config dir has %d files, want 1 (temp file left behind?)", len(files))
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("HOME", "/home/none")

	cfg, err := LoadFs(afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("CacheSize = %d, want default", cfg.CacheSize)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	t.Setenv("HOME", "/home/bad")
	fs := afero.NewMemMapFs()

	configPath := filepath.Join("/home/bad", ConfigDir, ConfigFileName)
	if err := afero.WriteFile(fs, configPath, []byte("origin: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFs(fs)
	if err == nil {
		t.Error("LoadFs() should fail on invalid YAML")
	}
	if cfg == nil || cfg.BatchLimit != DefaultBatchLimit {
		t.Error("LoadFs() should return defaults alongside the error")
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	t.Setenv("HOME", "/home/norm")
	fs := afero.NewMemMapFs()

	configPath := filepath.Join("/home/norm", ConfigDir, ConfigFileName)
	yamlData := "sniff_timeout: 0s\nbatch_limit: 500\ncache_size: -1\nretry_delay: 250ms\n"
	if err := afero.WriteFile(fs, configPath, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFs(fs)
	if err != nil {
		t.Fatalf("LoadFs() error = %v", err)
	}
	if cfg.SniffTimeout != DefaultSniffTimeout {
		t.Errorf("SniffTimeout = %v, want default", cfg.SniffTimeout)
	}
	if cfg.BatchLimit != MaxBatchLimit {
		t.Errorf("BatchLimit = %d, want %d", cfg.BatchLimit, MaxBatchLimit)
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("CacheSize = %d, want default", cfg.CacheSize)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", cfg.RetryDelay)
	}
}

func TestClampBatchLimit(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{-1, DefaultBatchLimit},
		{0, DefaultBatchLimit},
		{1, 1},
		{5, 5},
		{MaxBatchLimit + 1, MaxBatchLimit},
	}

	for _, tt := range tests {
		if got := ClampBatchLimit(tt.input); got != tt.expected {
			t.Errorf("ClampBatchLimit(%d) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
