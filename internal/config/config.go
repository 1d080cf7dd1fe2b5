package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"
)

// Config represents the overall application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Quarantine QuarantineConfig `toml:"quarantine"`
	Realtime   RealtimeConfig   `toml:"realtime"`
	Path       string
}

// ServerConfig represents the clamd endpoint configuration section
type ServerConfig struct {
	Hostname             string `toml:"hostname"`
	Port                 int    `toml:"port"`
	FileSeparator        string `toml:"file_separator"`
	ConnectTimeoutMillis int    `toml:"connect_timeout_millis"`
	ReadTimeoutMillis    int    `toml:"read_timeout_millis"`
}

// QuarantineConfig represents the quarantine configuration section
type QuarantineConfig struct {
	Action string `toml:"action"`
	Dir    string `toml:"dir"`
}

// RealtimeConfig represents the realtime scanner configuration section
type RealtimeConfig struct {
	SecondaryDirs    []string `toml:"secondary_dirs"`
	IdleSleepSeconds int      `toml:"idle_sleep_seconds"`
	QueueSize        int      `toml:"queue_size"`
	CacheSizeMB      int      `toml:"cache_size_mb"`
	CachePath        string   `toml:"cache_path"`
	FsWatchProgram   string   `toml:"fswatch_program"`
	FsWatchMonitor   string   `toml:"fswatch_monitor"`
}

func (c Config) NormalizePath(file string) string {
	if file == "" {
		return ""
	}

	if strings.HasPrefix(file, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}
		file = filepath.Join(homeDir, file[1:])
	}

	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(filepath.Dir(c.Path), file)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cdir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return &Config{
		Path: filepath.Join(cdir, "config.toml"),
		Server: ServerConfig{
			Hostname:             "localhost",
			Port:                 3310,
			FileSeparator:        "PLATFORM",
			ConnectTimeoutMillis: 3000,
			ReadTimeoutMillis:    20000,
		},
		Quarantine: QuarantineConfig{
			Action: "NONE",
		},
		Realtime: RealtimeConfig{
			IdleSleepSeconds: 5,
			QueueSize:        5000,
			CacheSizeMB:      32,
			CachePath:        DefaultCachePath(),
		},
	}
}

// LoadConfig loads the configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	config.Path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found")
	}

	_, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %v", err)
	}

	config.Quarantine.Dir = config.NormalizePath(config.Quarantine.Dir)
	config.Realtime.CachePath = config.NormalizePath(config.Realtime.CachePath)
	for i, dir := range config.Realtime.SecondaryDirs {
		config.Realtime.SecondaryDirs[i] = config.NormalizePath(dir)
	}

	return config, nil
}

// LoadConfigFromCLI loads the configuration, letting CLI flags override the
// file values. A missing default config file is not an error; the defaults
// apply.
func LoadConfigFromCLI(ctx *cli.Context) (*Config, error) {
	var cfg *Config
	var err error
	if ctx.String("config") != "" {
		cfg, err = LoadConfig(ctx.String("config"))
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %v", err)
		}
	} else {
		cfg, err = LoadDefaultConfig()
		if err != nil {
			cfg = DefaultConfig()
		}
	}

	host := ctx.String("host")
	if host != "" {
		cfg.Server.Hostname = host
	}

	port := ctx.Int("port")
	if port != 0 {
		cfg.Server.Port = port
	}

	separator := ctx.String("separator")
	if separator != "" {
		cfg.Server.FileSeparator = separator
	}

	connectTimeout := ctx.Int("connect-timeout")
	if connectTimeout != 0 {
		cfg.Server.ConnectTimeoutMillis = connectTimeout
	}

	readTimeout := ctx.Int("read-timeout")
	if readTimeout != 0 {
		cfg.Server.ReadTimeoutMillis = readTimeout
	}

	quarantineAction := ctx.String("quarantine-action")
	if quarantineAction != "" {
		cfg.Quarantine.Action = quarantineAction
	}

	quarantineDir := ctx.String("quarantine-dir")
	if quarantineDir != "" {
		cfg.Quarantine.Dir = cfg.NormalizePath(quarantineDir)
	}

	return cfg, nil
}

// LoadDefaultConfig loads the configuration from the default path
func LoadDefaultConfig() (*Config, error) {
	configDir, err := DefaultConfigDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.toml")
	return LoadConfig(configPath)
}

// SaveConfig saves the configuration to the specified file path
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}

	return nil
}

// SaveDefaultConfig saves the configuration to the default path
func SaveDefaultConfig(config *Config) error {
	configDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.toml")
	return SaveConfig(config, configPath)
}

// DefaultConfigDir returns the configuration directory path
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}

	return filepath.Join(homeDir, ".config", "aviron"), nil
}

// DefaultCachePath returns the default scan cache path
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic("Failed to get user home directory")
	}

	return filepath.Join(home, ".cache", "aviron", "scancache")
}
