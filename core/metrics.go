package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

const (
	metricNamespace      = "integrations"
	metricTotalSuffix    = "total"
	metricDurationSuffix = "duration_ms"
)

// NopMetricsRecorder drops every sample. Services and webhook handlers fall
// back to it when no recorder is configured.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// operationMetric names a per-operation series, e.g.
// integrations.exchange_code.total.
func operationMetric(operation string, suffix string) string {
	return metricNamespace + "." + operation + "." + suffix
}

// operationTags only carries bounded values. User ids, record ids and app
// account ids stay in logs.
func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if service := strings.TrimSpace(fmt.Sprint(fields["service"])); service != "" && service != "<nil>" {
		tags["service"] = strings.ToLower(service)
	}
	if code, ok := fields["error_text_code"].(string); ok && code != "" {
		tags["error_text_code"] = code
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	maps.Copy(copied, tags)
	return copied
}
