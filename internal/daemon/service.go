package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/takama/daemon"

	"github.com/timfallmk/disk-space-bridge/internal/channel"
	"github.com/timfallmk/disk-space-bridge/internal/config"
	"github.com/timfallmk/disk-space-bridge/internal/diskspace"
	"github.com/timfallmk/disk-space-bridge/internal/logging"
	"github.com/timfallmk/disk-space-bridge/internal/observability"
)

const (
	diskCheckName   = "disk_space"
	memoryCheckName = "memory"
	configCheckName = "config"
	bridgeCheckName = "bridge"

	runtimeStatsInterval = 15 * time.Second
)

// Transport serves the messenger until ctx is cancelled or the peer goes away.
type Transport interface {
	Serve(ctx context.Context) error
}

type httpTransport struct {
	server *channel.HTTPServer
	addr   string
}

func (t httpTransport) Serve(ctx context.Context) error {
	return t.server.ListenAndServe(ctx, t.addr)
}

type Service struct {
	daemon.Daemon
	config     *config.Config
	configPath string
	configMu   sync.RWMutex

	logger     *logging.Logger
	ownsLogger bool
	events     *logging.EventLogger
	collector  *observability.MetricsCollector
	metrics    *observability.ApplicationMetrics
	health     *observability.HealthMonitor

	adapter   *diskspace.Adapter
	plugin    *diskspace.Plugin
	messenger *channel.Messenger
	transport Transport
	http      *channel.HTTPServer

	stdin  io.Reader
	stdout io.Writer

	startTime time.Time
	serveErr  error
	errMu     sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// Option customizes a Service.
type Option func(*Service)

// WithConfigPath records the file the config was loaded from. It is used for
// SIGHUP reloads and for watching the file.
func WithConfigPath(path string) Option {
	return func(s *Service) { s.configPath = path }
}

// WithLogger makes the service log to logger instead of building its own.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAdapter replaces the OS-backed disk-space adapter.
func WithAdapter(a *diskspace.Adapter) Option {
	return func(s *Service) { s.adapter = a }
}

// WithStdio sets the streams used by the stdio transport.
func WithStdio(r io.Reader, w io.Writer) Option {
	return func(s *Service) {
		s.stdin = r
		s.stdout = w
	}
}

// WithDaemon replaces the system service manager.
func WithDaemon(d daemon.Daemon) Option {
	return func(s *Service) { s.Daemon = d }
}

func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		config: cfg,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(service)
	}

	if service.Daemon == nil {
		d, err := daemon.New(cfg.Daemon.Name, cfg.Daemon.Description, daemon.SystemDaemon)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create daemon: %w", err)
		}
		service.Daemon = d
	}

	if service.logger == nil {
		logger, err := logging.NewLogger(cfg.Logging)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		service.logger = logger
		service.ownsLogger = true
	}

	if service.adapter == nil {
		service.adapter = diskspace.NewAdapter()
	}

	return service, nil
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// Messenger returns the messenger the plugin is registered on. It is nil
// before Initialize.
func (s *Service) Messenger() *channel.Messenger {
	return s.messenger
}

func (s *Service) Initialize() error {
	cfg := s.Config()
	log := s.logger.WithComponent("daemon")
	log.Info("initializing disk space bridge", "transport", cfg.Bridge.Transport, "channel", cfg.Bridge.Channel)

	s.events = logging.NewEventLogger(s.logger)
	s.collector = observability.NewMetricsCollector(s.logger, cfg.Metrics.FlushInterval)
	s.metrics = observability.NewApplicationMetrics(s.collector)

	s.messenger = channel.NewMessenger(cfg.Bridge.Channel)
	s.plugin = diskspace.NewPlugin(s.adapter, s.logger, s.metrics)
	s.plugin.SetEventLogger(s.events)
	s.plugin.RegisterWith(s.messenger, cfg.Bridge.Channel)

	transport, err := s.buildTransport(cfg)
	if err != nil {
		return err
	}
	s.transport = transport

	if cfg.Health.Enabled {
		s.health = observability.NewHealthMonitor(s.logger, s.metrics, cfg.Health.Interval)
		s.registerHealthCheckers(cfg)
	}

	log.Info("bridge initialized", "channels", s.messenger.Channels())
	return nil
}

func (s *Service) buildTransport(cfg *config.Config) (Transport, error) {
	switch cfg.Bridge.Transport {
	case config.TransportStdio:
		stream := channel.NewStreamServer(s.messenger, s.stdin, s.stdout, config.TransportStdio, s.logger)
		stream.SetObserver(s.metrics)
		return stream, nil
	case config.TransportHTTP:
		s.http = channel.NewHTTPServer(s.messenger, s.logger, cfg.Bridge.RequestTimeout)
		s.http.SetObserver(s.metrics)
		s.http.SetHealthFunc(s.healthSummary)
		s.http.SetMetricsFunc(func() any { return s.collector.Snapshot() })
		return httpTransport{server: s.http, addr: cfg.Bridge.Listen}, nil
	case config.TransportSerial:
		serial := channel.NewSerialTransport(s.messenger, cfg.Bridge.SerialPort, cfg.Bridge.BaudRate, s.logger)
		serial.SetObserver(s.metrics)
		return serial, nil
	default:
		return nil, fmt.Errorf("unsupported bridge transport: %s", cfg.Bridge.Transport)
	}
}

func (s *Service) registerHealthCheckers(cfg *config.Config) {
	s.health.RegisterChecker(observability.NewDiskSpaceHealthChecker(diskCheckName, s.adapter, cfg.Health.Path, cfg.Health.MinFreeMB))
	s.health.RegisterChecker(observability.NewMemoryHealthChecker(memoryCheckName, cfg.Health.MaxMemoryMB*1024*1024))
	s.health.RegisterChecker(observability.NewConfigHealthChecker(configCheckName, func(context.Context) error {
		return s.Config().Validate()
	}))
	s.health.RegisterChecker(observability.NewBridgeHealthChecker(bridgeCheckName, s.checkBridge))
}

// checkBridge sends a version query through the messenger, exercising the
// same path as host calls.
func (s *Service) checkBridge(context.Context) error {
	resp := s.messenger.Invoke(channel.Request{Method: diskspace.NamePlatformVersion})
	if resp.Status() != channel.StatusSuccess {
		return fmt.Errorf("bridge answered %s", resp.Status())
	}
	return nil
}

func (s *Service) healthSummary() (bool, any) {
	if s.health == nil {
		return true, nil
	}
	return s.health.GetOverallHealth() != observability.StatusUnhealthy, s.health.GetHealth()
}

func (s *Service) Start() error {
	if err := s.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	s.startTime = time.Now()

	s.wg.Add(1)
	go s.serveTransport()

	if s.health != nil {
		s.health.Start()
	}

	s.wg.Add(1)
	go s.runRuntimeStats()

	s.wg.Add(1)
	go s.handleSignals()

	s.startWatcher()

	s.events.LogDaemon(logging.LevelInfo, "daemon started", "start", map[string]interface{}{
		"transport": s.Config().Bridge.Transport,
	})
	return nil
}

func (s *Service) serveTransport() {
	defer s.wg.Done()

	name := s.Config().Bridge.Transport
	s.events.LogBridge(logging.LevelInfo, "transport started", name, nil)

	err := s.transport.Serve(s.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.events.LogBridge(logging.LevelError, "transport failed", name, map[string]interface{}{"error": err.Error()})
		s.errMu.Lock()
		s.serveErr = err
		s.errMu.Unlock()
	}

	if s.ctx.Err() == nil {
		s.events.LogBridge(logging.LevelInfo, "transport finished, shutting down", name, nil)
		s.requestStop()
	}
}

func (s *Service) startWatcher() {
	if s.configPath == "" {
		return
	}
	if _, err := os.Stat(s.configPath); err != nil {
		return
	}

	w, err := config.NewWatcher(s.configPath, func(cfg *config.Config) {
		s.applyConfig(cfg, "watch")
	}, func(err error) {
		s.metrics.RecordConfigReload(false, 0)
		s.events.LogError(err, "config reload rejected", map[string]interface{}{"path": s.configPath})
	})
	if err != nil {
		s.logger.Warn("config watcher unavailable", "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := w.Run(s.ctx); err != nil {
			s.logger.Warn("config watcher stopped", "error", err)
		}
	}()
}

func (s *Service) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done is closed once a shutdown has been requested.
func (s *Service) Done() <-chan struct{} {
	return s.stopCh
}

func (s *Service) Stop() error {
	var err error

	s.doneOnce.Do(func() {
		s.requestStop()
		s.cancel()
		s.wg.Wait()

		if s.health != nil {
			s.health.Stop()
		}
		if s.collector != nil {
			s.collector.Close()
		}
		if s.events != nil {
			s.events.LogDaemon(logging.LevelInfo, "daemon stopped", "stop", map[string]interface{}{
				"uptime": s.uptime().String(),
			})
			s.events.Close()
		}
		if s.ownsLogger {
			err = s.logger.Close()
		}
	})

	return err
}

// Run starts the service and blocks until a shutdown is requested. It returns
// the transport's error, if it failed.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		_ = s.Stop()
		return err
	}

	<-s.stopCh
	if err := s.Stop(); err != nil {
		return err
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.serveErr
}

func (s *Service) uptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Service) runRuntimeStats() {
	defer s.wg.Done()

	ticker := time.NewTicker(runtimeStatsInterval)
	defer ticker.Stop()

	for {
		s.recordRuntimeStats()

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) recordRuntimeStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rss, err := observability.ProcessRSS(s.ctx)
	if err != nil {
		rss = ms.Sys
	}

	s.metrics.RecordDaemonUptime(s.uptime())
	s.metrics.RecordMemoryUsage(rss, ms.HeapAlloc)
	s.metrics.RecordGoroutines(runtime.NumGoroutine())
}

func (s *Service) handleSignals() {
	defer s.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-s.ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				s.logger.Info("received signal, shutting down", "signal", sig.String())
				s.requestStop()
				return
			case syscall.SIGHUP:
				s.logger.Info("received SIGHUP, reloading configuration")
				if err := s.reloadConfig(); err != nil {
					s.events.LogError(err, "failed to reload config", nil)
				}
			}
		}
	}
}

func (s *Service) reloadConfig() error {
	start := time.Now()

	if _, err := os.Stat(s.configPath); err != nil {
		s.metrics.RecordConfigReload(false, time.Since(start))
		return fmt.Errorf("config file unavailable, keeping current config: %w", err)
	}

	newConfig, err := config.LoadConfig(s.configPath)
	if err != nil {
		s.metrics.RecordConfigReload(false, time.Since(start))
		return fmt.Errorf("failed to load config: %w", err)
	}

	s.applyConfig(newConfig, "signal")
	return nil
}

// applyConfig swaps in cfg. Log level and health thresholds take effect
// immediately; bridge settings need a restart.
func (s *Service) applyConfig(cfg *config.Config, source string) {
	start := time.Now()

	s.configMu.Lock()
	old := s.config
	s.config = cfg
	s.configMu.Unlock()

	s.logger.SetLevel(cfg.Logging.Level)

	if old.Bridge != cfg.Bridge {
		s.logger.Warn("bridge settings changed; restart required to apply them")
	}

	if s.health != nil {
		s.health.RegisterChecker(observability.NewDiskSpaceHealthChecker(diskCheckName, s.adapter, cfg.Health.Path, cfg.Health.MinFreeMB))
		s.health.RegisterChecker(observability.NewMemoryHealthChecker(memoryCheckName, cfg.Health.MaxMemoryMB*1024*1024))
	}

	s.metrics.RecordConfigReload(true, time.Since(start))
	s.events.LogConfig(logging.LevelInfo, "configuration reloaded", s.configPath, map[string]interface{}{
		"source":    source,
		"log_level": string(cfg.Logging.Level),
	})
}

func (s *Service) Install() (string, error) {
	args := []string{"run"}
	if s.configPath != "" {
		args = append(args, "-config", s.configPath)
	}
	return s.Daemon.Install(args...)
}

func (s *Service) Remove() (string, error) {
	return s.Daemon.Remove()
}

func (s *Service) Status() (string, error) {
	return s.Daemon.Status()
}

func (s *Service) StartService() (string, error) {
	return s.Daemon.Start()
}

func (s *Service) StopService() (string, error) {
	return s.Daemon.Stop()
}
