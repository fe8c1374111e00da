package testutils

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timfallmk/disk-space-bridge/internal/config"
	"github.com/timfallmk/disk-space-bridge/internal/diskspace"
	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

const MB = 1024 * 1024

// CreateTempConfig writes configData to a config file in a per-test directory.
func CreateTempConfig(t *testing.T, configData string) string {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "test_config.yaml")
	if err := os.WriteFile(configFile, []byte(configData), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	return configFile
}

// CreateTestConfig creates a test configuration with reasonable defaults
func CreateTestConfig() *config.Config {
	cfg := config.DefaultConfig()

	cfg.Bridge.Transport = config.TransportHTTP
	cfg.Bridge.Listen = "127.0.0.1:0"
	cfg.Bridge.RequestTimeout = 2 * time.Second
	cfg.Health.Interval = 50 * time.Millisecond
	cfg.Health.MinFreeMB = 0
	cfg.Health.MaxMemoryMB = 0
	cfg.Metrics.FlushInterval = 0
	cfg.Daemon.Name = "test-disk-space-bridge"

	return cfg
}

// CreateTestConfigYAML returns a test configuration in YAML format
func CreateTestConfigYAML() string {
	return `
bridge:
  channel: "disk_space"
  transport: "http"
  listen: "127.0.0.1:0"
  request_timeout: 2s

health:
  enabled: true
  interval: 100ms
  path: ""
  min_free_mb: 0
  max_memory_mb: 0

metrics:
  flush_interval: 0s

daemon:
  name: "test-disk-space-bridge"
  description: "Test Disk Space Bridge"

logging:
  level: "debug"
  format: "text"
  output: "stderr"
`
}

// NewTestLogger returns a debug logger that discards its output.
func NewTestLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(logging.Config{Level: logging.LevelDebug, Format: logging.FormatText}, io.Discard)
}

// SafeBuffer is a bytes.Buffer safe for concurrent writers.
type SafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewBufferLogger returns a JSON debug logger writing into a SafeBuffer.
func NewBufferLogger() (*logging.Logger, *SafeBuffer) {
	buf := &SafeBuffer{}
	return logging.NewLoggerWithWriter(logging.Config{Level: logging.LevelDebug, Format: logging.FormatJSON}, buf), buf
}

// FakeVolumes is a VolumeQuerier backed by a map. Paths missing from
// Volumes report Err, or Default when Err is nil.
type FakeVolumes struct {
	mu      sync.Mutex
	Volumes map[string]diskspace.VolumeSpace
	Default diskspace.VolumeSpace
	Err     error
	queried []string
}

func (f *FakeVolumes) QueryVolume(path string) (diskspace.VolumeSpace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queried = append(f.queried, path)
	if vs, ok := f.Volumes[path]; ok {
		return vs, nil
	}
	if f.Err != nil {
		return diskspace.VolumeSpace{}, f.Err
	}
	return f.Default, nil
}

// Queried returns every path passed to QueryVolume, in order.
func (f *FakeVolumes) Queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

// FakeFolders is a FolderResolver that counts lookups and releases.
type FakeFolders struct {
	Path     string
	Err      error
	lookups  atomic.Int32
	releases atomic.Int32
}

func (f *FakeFolders) DesktopFolder() (string, func(), error) {
	f.lookups.Add(1)
	return f.Path, func() { f.releases.Add(1) }, f.Err
}

func (f *FakeFolders) Lookups() int  { return int(f.lookups.Load()) }
func (f *FakeFolders) Releases() int { return int(f.releases.Load()) }

// FixedVersion returns a VersionProbe reporting v.
func FixedVersion(v diskspace.OSVersion) diskspace.VersionProbe {
	return diskspace.VersionProbeFunc(func() diskspace.OSVersion { return v })
}

// Windows10 is the version reported by current Windows releases.
var Windows10 = diskspace.OSVersion{Major: 10, Minor: 0}

// NewTestAdapter wires an Adapter to the given fakes.
func NewTestAdapter(volumes *FakeVolumes, folders *FakeFolders, version diskspace.OSVersion) *diskspace.Adapter {
	return diskspace.NewAdapter(
		diskspace.WithVolumeQuerier(volumes),
		diskspace.WithFolderResolver(folders),
		diskspace.WithVersionProbe(FixedVersion(version)),
	)
}

// SkipIfShort skips a test if running in short mode
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()

	if testing.Short() {
		t.Skipf("Skipping test in short mode: %s", reason)
	}
}

// SkipIfCI skips a test if running in CI environment
func SkipIfCI(t *testing.T, reason string) {
	t.Helper()

	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		t.Skipf("Skipping test in CI environment: %s", reason)
	}
}

// WaitForCondition waits for a condition to become true within a timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, message)
}

// RunConcurrently runs multiple functions concurrently and waits for completion
func RunConcurrently(t *testing.T, functions ...func()) {
	t.Helper()

	done := make(chan bool, len(functions))

	for _, fn := range functions {
		go func(f func()) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Panic in concurrent function: %v", r)
				}
				done <- true
			}()
			f()
		}(fn)
	}

	for i := 0; i < len(functions); i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Concurrent function did not complete within timeout")
			return
		}
	}
}
