package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

const appName = "disk-space-bridge"

// EnvPrefix prefixes every environment override, e.g. DISKSPACE_BRIDGE_TRANSPORT.
const EnvPrefix = "DISKSPACE"

// Bridge transports.
const (
	TransportStdio  = "stdio"
	TransportHTTP   = "http"
	TransportSerial = "serial"
)

type Config struct {
	Bridge  BridgeConfig   `yaml:"bridge"`
	Health  HealthConfig   `yaml:"health"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Daemon  DaemonConfig   `yaml:"daemon"`
	Logging logging.Config `yaml:"logging"`
}

type BridgeConfig struct {
	Channel        string        `yaml:"channel"`
	Transport      string        `yaml:"transport"`
	Listen         string        `yaml:"listen"`
	SerialPort     string        `yaml:"serial_port" split_words:"true"`
	BaudRate       int           `yaml:"baud_rate" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
}

type HealthConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Path        string        `yaml:"path"` // empty means the default volume
	MinFreeMB   float64       `yaml:"min_free_mb" split_words:"true"`
	MaxMemoryMB uint64        `yaml:"max_memory_mb" split_words:"true"`
}

type MetricsConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval" split_words:"true"`
}

type DaemonConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Channel:        "disk_space",
			Transport:      TransportStdio,
			Listen:         "127.0.0.1:7412",
			SerialPort:     "",
			BaudRate:       115200,
			RequestTimeout: 10 * time.Second,
		},
		Health: HealthConfig{
			Enabled:     true,
			Interval:    30 * time.Second,
			Path:        "",
			MinFreeMB:   1024,
			MaxMemoryMB: 256,
		},
		Metrics: MetricsConfig{
			FlushInterval: 60 * time.Second,
		},
		Daemon: DaemonConfig{
			Name:        "disk-space-bridge",
			Description: "Disk space query bridge for desktop host applications",
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadConfig reads path (or the default location when path is empty),
// applies environment overrides and validates the result. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ReadConfig is LoadConfig without validation, for callers that adjust the
// result before checking it.
func ReadConfig(path string) (*Config, error) {
	if path == "" {
		path = getDefaultConfigPath()
	}

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides fields from DISKSPACE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	return nil
}

func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = getDefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Bridge.Channel == "" {
		return fmt.Errorf("bridge channel must not be empty")
	}

	switch c.Bridge.Transport {
	case TransportStdio:
		if c.Logging.Output == logging.OutputStdout {
			return fmt.Errorf("logging output cannot be stdout while the bridge uses stdio")
		}
	case TransportHTTP:
		if c.Bridge.Listen == "" {
			return fmt.Errorf("bridge listen address is required for http transport")
		}
	case TransportSerial:
		if c.Bridge.BaudRate <= 0 {
			return fmt.Errorf("bridge baud_rate must be positive")
		}
	default:
		return fmt.Errorf("invalid bridge transport: %s", c.Bridge.Transport)
	}

	if c.Bridge.RequestTimeout <= 0 {
		return fmt.Errorf("bridge request_timeout must be positive")
	}

	if c.Health.Enabled && c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}

	if c.Health.MinFreeMB < 0 {
		return fmt.Errorf("health min_free_mb must not be negative")
	}

	if c.Metrics.FlushInterval < 0 {
		return fmt.Errorf("metrics flush_interval must not be negative")
	}

	validLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != logging.FormatJSON && c.Logging.Format != logging.FormatText {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func getDefaultConfigPath() string {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return filepath.Join(configDir, appName, "config.yaml")
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, appName, "config.yaml")
	}

	return "./config.yaml"
}

func GetConfigPaths() []string {
	paths := []string{getDefaultConfigPath()}

	if programData := os.Getenv("ProgramData"); programData != "" {
		paths = append(paths, filepath.Join(programData, appName, "config.yaml"))
	}

	paths = append(paths, "/etc/"+appName+"/config.yaml")
	paths = append(paths, "./configs/config.yaml")

	return paths
}

func FindConfig() (string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return absPath, nil
		}
	}
	return "", fmt.Errorf("no config file found in standard locations")
}
