package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Bridge.Channel != "disk_space" {
		t.Errorf("Expected channel disk_space, got %s", cfg.Bridge.Channel)
	}

	if cfg.Bridge.Transport != TransportStdio {
		t.Errorf("Expected transport stdio, got %s", cfg.Bridge.Transport)
	}

	if cfg.Bridge.BaudRate != 115200 {
		t.Errorf("Expected baud rate 115200, got %d", cfg.Bridge.BaudRate)
	}

	if cfg.Bridge.RequestTimeout != 10*time.Second {
		t.Errorf("Expected request timeout 10s, got %v", cfg.Bridge.RequestTimeout)
	}

	if !cfg.Health.Enabled || cfg.Health.Interval != 30*time.Second {
		t.Errorf("Expected health enabled every 30s, got %v/%v", cfg.Health.Enabled, cfg.Health.Interval)
	}

	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected logging to stderr, got %s", cfg.Logging.Output)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			modify: func(c *Config) {},
		},
		{
			name:    "empty channel",
			modify:  func(c *Config) { c.Bridge.Channel = "" },
			wantErr: "channel",
		},
		{
			name:    "unknown transport",
			modify:  func(c *Config) { c.Bridge.Transport = "carrier-pigeon" },
			wantErr: "invalid bridge transport",
		},
		{
			name:    "stdio with stdout logging",
			modify:  func(c *Config) { c.Logging.Output = "stdout" },
			wantErr: "stdout",
		},
		{
			name: "http with stdout logging",
			modify: func(c *Config) {
				c.Bridge.Transport = TransportHTTP
				c.Logging.Output = "stdout"
			},
		},
		{
			name: "http without listen",
			modify: func(c *Config) {
				c.Bridge.Transport = TransportHTTP
				c.Bridge.Listen = ""
			},
			wantErr: "listen",
		},
		{
			name: "serial with zero baud",
			modify: func(c *Config) {
				c.Bridge.Transport = TransportSerial
				c.Bridge.BaudRate = 0
			},
			wantErr: "baud_rate",
		},
		{
			name:    "zero request timeout",
			modify:  func(c *Config) { c.Bridge.RequestTimeout = 0 },
			wantErr: "request_timeout",
		},
		{
			name:    "enabled health without interval",
			modify:  func(c *Config) { c.Health.Interval = 0 },
			wantErr: "health interval",
		},
		{
			name: "disabled health without interval",
			modify: func(c *Config) {
				c.Health.Enabled = false
				c.Health.Interval = 0
			},
		},
		{
			name:    "negative min free",
			modify:  func(c *Config) { c.Health.MinFreeMB = -1 },
			wantErr: "min_free_mb",
		},
		{
			name:    "negative flush interval",
			modify:  func(c *Config) { c.Metrics.FlushInterval = -time.Second },
			wantErr: "flush_interval",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
bridge:
  channel: storage
  transport: http
  listen: 127.0.0.1:9000
  request_timeout: 3s
health:
  enabled: true
  interval: 5s
  path: /data
  min_free_mb: 10
logging:
  level: debug
  format: json
  output: stdout
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "storage", cfg.Bridge.Channel)
	assert.Equal(t, TransportHTTP, cfg.Bridge.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Bridge.Listen)
	assert.Equal(t, 3*time.Second, cfg.Bridge.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Health.Interval)
	assert.Equal(t, "/data", cfg.Health.Path)
	assert.Equal(t, 10.0, cfg.Health.MinFreeMB)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)

	// Unset keys keep their defaults.
	assert.Equal(t, 115200, cfg.Bridge.BaudRate)
	assert.Equal(t, uint64(256), cfg.Health.MaxMemoryMB)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "bridge: [unclosed", "parse"},
		{"invalid values", "bridge:\n  transport: ftp\n", "invalid configuration"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "config"+string(rune('a'+i))+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadConfigSkipsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  transport: ftp\n"), 0644))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ftp", cfg.Bridge.Transport)
	assert.Error(t, cfg.Validate())

	_, err = ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
}

func TestLoadConfigNonExistentFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("DISKSPACE_BRIDGE_TRANSPORT", "http")
	t.Setenv("DISKSPACE_BRIDGE_LISTEN", "0.0.0.0:8080")
	t.Setenv("DISKSPACE_BRIDGE_REQUEST_TIMEOUT", "4s")
	t.Setenv("DISKSPACE_HEALTH_MIN_FREE_MB", "42.5")
	t.Setenv("DISKSPACE_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Bridge.Transport)
	assert.Equal(t, "0.0.0.0:8080", cfg.Bridge.Listen)
	assert.Equal(t, 4*time.Second, cfg.Bridge.RequestTimeout)
	assert.Equal(t, 42.5, cfg.Health.MinFreeMB)
	assert.Equal(t, logging.LevelWarn, cfg.Logging.Level)
}

func TestConfigEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  channel: from_file\n"), 0644))
	t.Setenv("DISKSPACE_BRIDGE_CHANNEL", "from_env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Bridge.Channel)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Bridge.Transport = TransportSerial
	cfg.Bridge.SerialPort = "/dev/ttyACM0"

	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGetConfigPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("ProgramData", "")

	paths := GetConfigPaths()

	if len(paths) == 0 {
		t.Fatal("GetConfigPaths() returned no paths")
	}

	want := filepath.Join("/tmp/xdg", appName, "config.yaml")
	if paths[0] != want {
		t.Errorf("GetConfigPaths()[0] = %s, want %s", paths[0], want)
	}

	for _, p := range paths {
		if !strings.HasSuffix(p, "config.yaml") {
			t.Errorf("unexpected config path %s", p)
		}
	}
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, appName, "config.yaml")
	require.NoError(t, DefaultConfig().SaveConfig(path))

	found, err := FindConfig()
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindConfigNotFound(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("ProgramData", "")
	chdirForTest(t, dir)

	if _, err := os.Stat("/etc/" + appName + "/config.yaml"); err == nil {
		t.Skip("system config present")
	}

	_, err := FindConfig()
	assert.Error(t, err)
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().SaveConfig(path))

	reloaded := make(chan *Config, 16)
	failures := make(chan error, 16)

	w, err := NewWatcher(path, func(c *Config) { reloaded <- c }, func(err error) { failures <- err })
	require.NoError(t, err)
	w.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	cfg := DefaultConfig()
	cfg.Logging.Level = logging.LevelDebug
	require.NoError(t, cfg.SaveConfig(path))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-reloaded:
			if got.Logging.Level == logging.LevelDebug {
				return
			}
		case err := <-failures:
			t.Fatalf("unexpected reload failure: %v", err)
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}

func TestWatcherInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().SaveConfig(path))

	failures := make(chan error, 4)
	w, err := NewWatcher(path, func(*Config) {}, func(err error) {
		select {
		case failures <- err:
		default:
		}
	})
	require.NoError(t, err)
	w.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  transport: ftp\n"), 0644))

	select {
	case err := <-failures:
		assert.Contains(t, err.Error(), "invalid configuration")
	case <-time.After(5 * time.Second):
		t.Fatal("invalid config was not reported")
	}
}

func TestWatcherIgnoresConfigMovedAway(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Logging.Level = logging.LevelDebug
	cfg.Health.MinFreeMB = 5
	require.NoError(t, cfg.SaveConfig(path))

	reloaded := make(chan *Config, 4)
	failures := make(chan error, 4)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c }, func(err error) {
		select {
		case failures <- err:
		default:
		}
	})
	require.NoError(t, err)
	w.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.Rename(path, filepath.Join(dir, "config.yaml.bak")))

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, os.ErrNotExist)
	case c := <-reloaded:
		t.Fatalf("reloaded defaults after the file was moved: level=%s min_free_mb=%v", c.Logging.Level, c.Health.MinFreeMB)
	case <-time.After(5 * time.Second):
		t.Fatal("missing config was not reported")
	}

	select {
	case c := <-reloaded:
		t.Fatalf("unexpected reload: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
