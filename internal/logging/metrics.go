package logging

import "log/slog"

// MetricsLogger writes metric samples as log records under the "metrics"
// component.
type MetricsLogger struct {
	logger *Logger
}

func NewMetricsLogger(logger *Logger) *MetricsLogger {
	return &MetricsLogger{logger: logger.WithComponent("metrics")}
}

// LogSample writes one sample. extra carries type-specific attributes such as
// a histogram's count.
func (ml *MetricsLogger) LogSample(metricType, name string, value float64, labels map[string]string, extra ...slog.Attr) {
	attrs := []any{
		slog.String("metric_type", metricType),
		slog.String("metric_name", name),
		slog.Float64("value", value),
	}
	if len(labels) > 0 {
		group := make([]any, 0, len(labels))
		for k, v := range labels {
			group = append(group, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("labels", group...))
	}
	for _, a := range extra {
		attrs = append(attrs, a)
	}

	ml.logger.Info("metric", attrs...)
}
