package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"

	"github.com/avironsec/aviron/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	homeDir, _ := os.UserHomeDir()
	expectedCachePath := filepath.Join(homeDir, ".cache", "aviron", "scancache")

	assert.Equal(t, "localhost", cfg.Server.Hostname)
	assert.Equal(t, 3310, cfg.Server.Port)
	assert.Equal(t, "PLATFORM", cfg.Server.FileSeparator)
	assert.Equal(t, 3000, cfg.Server.ConnectTimeoutMillis)
	assert.Equal(t, 20000, cfg.Server.ReadTimeoutMillis)
	assert.Equal(t, "NONE", cfg.Quarantine.Action)
	assert.Equal(t, 5, cfg.Realtime.IdleSleepSeconds)
	assert.Equal(t, 5000, cfg.Realtime.QueueSize)
	assert.Equal(t, expectedCachePath, cfg.Realtime.CachePath)
}

func TestNormalizePath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()
	cfg := config.Config{Path: "/some/config/path/config.toml"}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty path", "", ""},
		{"Relative path", "relative/path", "/some/config/path/relative/path"},
		{"Absolute path", "/absolute/path", "/absolute/path"},
		{"Home tilde path", "~/something", filepath.Join(homeDir, "something")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cfg.NormalizePath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	testCfg := config.DefaultConfig()
	testCfg.Server.Hostname = "scanner.internal"
	testCfg.Server.Port = 3311
	testCfg.Quarantine.Action = "MOVE"
	testCfg.Quarantine.Dir = "/var/quarantine"

	f, err := os.Create(configPath)
	assert.NoError(t, err)
	defer f.Close()

	err = toml.NewEncoder(f).Encode(testCfg)
	assert.NoError(t, err)
	f.Close()

	cfg, err := config.LoadConfig(configPath)
	assert.NoError(t, err)
	assert.Equal(t, "scanner.internal", cfg.Server.Hostname)
	assert.Equal(t, 3311, cfg.Server.Port)
	assert.Equal(t, "MOVE", cfg.Quarantine.Action)
	assert.Equal(t, "/var/quarantine", cfg.Quarantine.Dir)

	_, err = config.LoadConfig(filepath.Join(tempDir, "nonexistent.toml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadConfigNormalizesRelativePaths(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(`
[quarantine]
action = "COPY"
dir = "quarantine"

[realtime]
secondary_dirs = ["extra"]
`), 0644)
	assert.NoError(t, err)

	cfg, err := config.LoadConfig(configPath)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "quarantine"), cfg.Quarantine.Dir)
	assert.Equal(t, []string{filepath.Join(tempDir, "extra")}, cfg.Realtime.SecondaryDirs)
}

func TestSaveConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	cfg := config.DefaultConfig()
	cfg.Server.Hostname = "clamd.lan"

	err := config.SaveConfig(cfg, configPath)
	assert.NoError(t, err)

	loadedCfg, err := config.LoadConfig(configPath)
	assert.NoError(t, err)
	assert.Equal(t, "clamd.lan", loadedCfg.Server.Hostname)
}

func TestDefaultPaths(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	configDir, err := config.DefaultConfigDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, ".config", "aviron"), configDir)

	cachePath := config.DefaultCachePath()
	assert.Equal(t, filepath.Join(homeDir, ".cache", "aviron", "scancache"), cachePath)
}
