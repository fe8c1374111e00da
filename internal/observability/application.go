package observability

import (
	"strconv"
	"time"
)

// Metric names recorded by ApplicationMetrics.
const (
	MetricMethodCalls          = "method_calls_total"
	MetricMethodCallDuration   = "method_call_duration_seconds"
	MetricVolumeMegabytes      = "volume_megabytes"
	MetricBridgeRequests       = "bridge_requests_total"
	MetricBridgeDuration       = "bridge_request_duration_seconds"
	MetricConfigReloads        = "config_reloads_total"
	MetricConfigReloadDuration = "config_reload_duration_seconds"
	MetricHealthChecks         = "health_checks_total"
	MetricHealthCheckDuration  = "health_check_duration_seconds"
	MetricComponentHealth      = "component_health"
	MetricUptime               = "daemon_uptime_seconds"
	MetricProcessRSS           = "process_rss_bytes"
	MetricHeapAlloc            = "memory_heap_alloc_bytes"
	MetricGoroutines           = "goroutines_count"
)

// outcomeMegabytes matches diskspace.KindMegabytes.String().
const outcomeMegabytes = "megabytes"

// ApplicationMetrics records the bridge's domain metrics on a collector. It
// satisfies the recorder and observer interfaces of the diskspace and channel
// packages.
type ApplicationMetrics struct {
	collector *MetricsCollector
}

func NewApplicationMetrics(collector *MetricsCollector) *ApplicationMetrics {
	return &ApplicationMetrics{collector: collector}
}

func (am *ApplicationMetrics) Collector() *MetricsCollector {
	return am.collector
}

func labels(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

// RecordMethodCall records one disk-space call. value is published as the
// method's latest volume size only for megabyte outcomes.
func (am *ApplicationMetrics) RecordMethodCall(method, outcome string, value float64, duration time.Duration) {
	am.collector.IncCounter(MetricMethodCalls, labels("method", method, "outcome", outcome))
	am.collector.RecordDuration(MetricMethodCallDuration, duration, labels("method", method))

	if outcome == outcomeMegabytes {
		am.collector.SetGaugeWithUnit(MetricVolumeMegabytes, value, labels("method", method), "megabytes")
	}
}

// RecordBridgeRequest records one request served by a transport.
func (am *ApplicationMetrics) RecordBridgeRequest(transport, status string, duration time.Duration) {
	am.collector.IncCounter(MetricBridgeRequests, labels("transport", transport, "status", status))
	am.collector.RecordDuration(MetricBridgeDuration, duration, labels("transport", transport))
}

func (am *ApplicationMetrics) RecordConfigReload(success bool, duration time.Duration) {
	l := labels("success", strconv.FormatBool(success))
	am.collector.IncCounter(MetricConfigReloads, l)
	am.collector.RecordDuration(MetricConfigReloadDuration, duration, l)
}

func (am *ApplicationMetrics) RecordDaemonUptime(uptime time.Duration) {
	am.collector.SetGaugeWithUnit(MetricUptime, uptime.Seconds(), nil, "seconds")
}

func (am *ApplicationMetrics) RecordMemoryUsage(rssBytes, heapAlloc uint64) {
	am.collector.SetGaugeWithUnit(MetricProcessRSS, float64(rssBytes), nil, "bytes")
	am.collector.SetGaugeWithUnit(MetricHeapAlloc, float64(heapAlloc), nil, "bytes")
}

func (am *ApplicationMetrics) RecordGoroutines(count int) {
	am.collector.SetGauge(MetricGoroutines, float64(count), nil)
}

// RecordHealthCheck records one check run and sets component_health to 1 or 0.
func (am *ApplicationMetrics) RecordHealthCheck(component string, healthy bool, duration time.Duration) {
	l := labels("component", component, "healthy", strconv.FormatBool(healthy))
	am.collector.IncCounter(MetricHealthChecks, l)
	am.collector.RecordDuration(MetricHealthCheckDuration, duration, l)

	value := 0.0
	if healthy {
		value = 1
	}
	am.collector.SetGauge(MetricComponentHealth, value, labels("component", component))
}
