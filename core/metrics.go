package core

import "context"

// Metric names emitted by the allocator. Service operations derive
// theirs from the operation name ("claims.<operation>.total").
const (
	MetricAllocateTotal      = "claims.allocate.total"
	MetricAllocateDurationMS = "claims.allocate.duration_ms"
)

// NopMetricsRecorder drops every measurement. Installed when no
// recorder option is given so call sites never nil-check.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
