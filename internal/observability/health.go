package observability

import (
	"context"
	"sync"
	"time"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
	StatusStarting  HealthStatus = "starting"
)

// severity orders statuses for folding: the worst one wins.
func (s HealthStatus) severity() int {
	switch s {
	case StatusUnhealthy:
		return 3
	case StatusStarting:
		return 2
	case StatusHealthy:
		return 1
	default:
		return 0
	}
}

// HealthCheck is the latest result of one checker.
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
	Timeout() time.Duration
}

const (
	maxConcurrentChecks = 4
	defaultCheckTimeout = 30 * time.Second
)

type healthEntry struct {
	checker HealthChecker
	result  HealthCheck
}

// HealthMonitor runs its checkers every interval and keeps their latest
// results.
type HealthMonitor struct {
	logger   *logging.Logger
	metrics  *ApplicationMetrics
	interval time.Duration

	mu      sync.RWMutex
	entries map[string]*healthEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	slots  chan struct{}
}

// NewHealthMonitor creates a monitor. A non-positive interval becomes one
// second. metrics may be nil.
func NewHealthMonitor(logger *logging.Logger, metrics *ApplicationMetrics, interval time.Duration) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.WithComponent("health")

	if interval <= 0 {
		log.Warn("invalid health check interval, using 1s", "interval", interval)
		interval = time.Second
	}

	return &HealthMonitor{
		logger:   log,
		metrics:  metrics,
		interval: interval,
		entries:  make(map[string]*healthEntry),
		ctx:      ctx,
		cancel:   cancel,
		slots:    make(chan struct{}, maxConcurrentChecks),
	}
}

// RegisterChecker adds checker, replacing any checker with the same name.
// Its status is starting until it first runs.
func (hm *HealthMonitor) RegisterChecker(checker HealthChecker) {
	name := checker.Name()

	hm.mu.Lock()
	hm.entries[name] = &healthEntry{
		checker: checker,
		result:  HealthCheck{Name: name, Status: StatusStarting, LastChecked: time.Now()},
	}
	hm.mu.Unlock()

	hm.logger.Debug("health checker registered", "checker", name)
}

// Start runs the checks immediately and then every interval until Stop.
func (hm *HealthMonitor) Start() {
	hm.wg.Add(1)
	go func() {
		defer hm.wg.Done()

		ticker := time.NewTicker(hm.interval)
		defer ticker.Stop()

		for {
			hm.RunChecks()
			select {
			case <-hm.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	hm.logger.Info("health monitor started", "interval", hm.interval)
}

func (hm *HealthMonitor) Stop() {
	hm.cancel()
	hm.wg.Wait()
}

// GetHealth returns a copy of every checker's latest result.
func (hm *HealthMonitor) GetHealth() map[string]*HealthCheck {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make(map[string]*HealthCheck, len(hm.entries))
	for name, e := range hm.entries {
		r := e.result
		out[name] = &r
	}
	return out
}

// GetOverallHealth is the worst status among the checkers, or unknown when
// none are registered.
func (hm *HealthMonitor) GetOverallHealth() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	overall := StatusUnknown
	for _, e := range hm.entries {
		if e.result.Status.severity() > overall.severity() {
			overall = e.result.Status
		}
	}
	return overall
}

func (hm *HealthMonitor) IsHealthy() bool {
	return hm.GetOverallHealth() == StatusHealthy
}

// RunChecks runs every checker once, at most maxConcurrentChecks at a time,
// and waits for them.
func (hm *HealthMonitor) RunChecks() {
	hm.mu.RLock()
	checkers := make([]HealthChecker, 0, len(hm.entries))
	for _, e := range hm.entries {
		checkers = append(checkers, e.checker)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range checkers {
		select {
		case hm.slots <- struct{}{}:
		case <-hm.ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			defer func() { <-hm.slots }()
			hm.runCheck(c)
		}(c)
	}
	wg.Wait()
}

func (hm *HealthMonitor) runCheck(checker HealthChecker) {
	timeout := checker.Timeout()
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	ctx, cancel := context.WithTimeout(hm.ctx, timeout)
	defer cancel()

	start := time.Now()
	err := checker.Check(ctx)
	duration := time.Since(start)

	result := HealthCheck{
		Name:        checker.Name(),
		Status:      StatusHealthy,
		Message:     "OK",
		LastChecked: time.Now(),
		Duration:    duration,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.Error = err.Error()
	}

	hm.mu.Lock()
	// A checker replaced while running keeps the replacement's result.
	if e, ok := hm.entries[result.Name]; ok && e.checker == checker {
		e.result = result
	}
	hm.mu.Unlock()

	if hm.metrics != nil {
		hm.metrics.RecordHealthCheck(result.Name, err == nil, duration)
	}

	if err != nil {
		hm.logger.Warn("health check failed", "checker", result.Name, "duration", duration, "error", err)
		return
	}
	hm.logger.Debug("health check passed", "checker", result.Name, "duration", duration)
}
