package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is one labelled series. For histograms Value is the latest
// observation and Count, Sum, Min and Max summarize all of them.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Unit      string            `json:"unit,omitempty"`
	Count     uint64            `json:"count,omitempty"`
	Sum       float64           `json:"sum,omitempty"`
	Min       float64           `json:"min,omitempty"`
	Max       float64           `json:"max,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (m *Metric) clone() *Metric {
	c := *m
	c.Labels = copyLabels(m.Labels)
	return &c
}

// Mean is the average histogram observation, or zero for other types.
func (m *Metric) Mean() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}

// copyLabels returns an independent copy of src, or nil when src is empty.
func copyLabels(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type seriesKey struct {
	name   string
	labels string
}

func keyOf(name string, labels map[string]string) seriesKey {
	if len(labels) == 0 {
		return seriesKey{name: name}
	}

	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return seriesKey{name: name, labels: strings.Join(pairs, ",")}
}

// String renders the key as name{k=v,...}.
func (k seriesKey) String() string {
	if k.labels == "" {
		return k.name
	}
	return k.name + "{" + k.labels + "}"
}

// MetricsCollector keeps metrics in memory and writes them to the log every
// flush interval and once more on Close.
type MetricsCollector struct {
	logger *logging.MetricsLogger

	mu     sync.RWMutex
	series map[seriesKey]*Metric

	flushInterval time.Duration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewMetricsCollector starts a collector. A non-positive flushInterval
// disables periodic flushing; Close still flushes.
func NewMetricsCollector(logger *logging.Logger, flushInterval time.Duration) *MetricsCollector {
	ctx, cancel := context.WithCancel(context.Background())

	mc := &MetricsCollector{
		logger:        logging.NewMetricsLogger(logger),
		series:        make(map[seriesKey]*Metric),
		flushInterval: flushInterval,
		cancel:        cancel,
	}

	mc.wg.Add(1)
	go mc.flushLoop(ctx)

	return mc
}

// update runs fn on the series for name and labels, creating it first if
// needed.
func (mc *MetricsCollector) update(t MetricType, name string, labels map[string]string, fn func(m *Metric)) {
	key := keyOf(name, labels)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, ok := mc.series[key]
	if !ok || m.Type != t {
		m = &Metric{Name: name, Type: t, Labels: copyLabels(labels)}
		mc.series[key] = m
	}
	fn(m)
	m.Timestamp = time.Now()
}

func (mc *MetricsCollector) IncCounter(name string, labels map[string]string) {
	mc.AddCounter(name, 1, labels)
}

func (mc *MetricsCollector) AddCounter(name string, value float64, labels map[string]string) {
	mc.update(MetricTypeCounter, name, labels, func(m *Metric) { m.Value += value })
}

func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.SetGaugeWithUnit(name, value, labels, "")
}

func (mc *MetricsCollector) SetGaugeWithUnit(name string, value float64, labels map[string]string, unit string) {
	mc.update(MetricTypeGauge, name, labels, func(m *Metric) {
		m.Value = value
		m.Unit = unit
	})
}

func (mc *MetricsCollector) ObserveHistogram(name string, value float64, labels map[string]string) {
	mc.update(MetricTypeHistogram, name, labels, func(m *Metric) {
		if m.Count == 0 || value < m.Min {
			m.Min = value
		}
		if m.Count == 0 || value > m.Max {
			m.Max = value
		}
		m.Count++
		m.Sum += value
		m.Value = value
	})
}

// RecordDuration observes duration, in seconds, on a histogram.
func (mc *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	mc.ObserveHistogram(name, duration.Seconds(), labels)
}

// GetMetrics returns a copy of every series keyed by name{labels}.
func (mc *MetricsCollector) GetMetrics() map[string]*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]*Metric, len(mc.series))
	for k, m := range mc.series {
		out[k.String()] = m.clone()
	}
	return out
}

// GetMetric returns a copy of the series with the given name and labels.
func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) (*Metric, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	m, ok := mc.series[keyOf(name, labels)]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// Snapshot returns a copy of every series sorted by name, then labels.
func (mc *MetricsCollector) Snapshot() []*Metric {
	mc.mu.RLock()
	keys := make([]seriesKey, 0, len(mc.series))
	for k := range mc.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].labels < keys[j].labels
	})

	out := make([]*Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, mc.series[k].clone())
	}
	mc.mu.RUnlock()

	return out
}

func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.series = make(map[seriesKey]*Metric)
}

// Close flushes once more and stops the flush loop. It may be called more
// than once.
func (mc *MetricsCollector) Close() {
	mc.closeOnce.Do(func() {
		mc.cancel()
		mc.wg.Wait()
	})
}

func (mc *MetricsCollector) flushLoop(ctx context.Context) {
	defer mc.wg.Done()
	defer mc.Flush()

	if mc.flushInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(mc.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.Flush()
		}
	}
}

// Flush writes every series to the metrics log.
func (mc *MetricsCollector) Flush() {
	for _, m := range mc.Snapshot() {
		var extra []slog.Attr
		if m.Unit != "" {
			extra = append(extra, slog.String("unit", m.Unit))
		}
		if m.Type == MetricTypeHistogram {
			extra = append(extra,
				slog.Uint64("count", m.Count),
				slog.Float64("mean", m.Mean()),
				slog.Float64("min", m.Min),
				slog.Float64("max", m.Max),
			)
		}
		mc.logger.LogSample(string(m.Type), m.Name, m.Value, m.Labels, extra...)
	}
}
