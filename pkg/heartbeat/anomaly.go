package heartbeat

import (
	"math"

	"github.com/forgekit/autoforge/ent"
)

// queueSaturationDepth is the queue_depth at which the queue-impact
// component alone reaches its capped weight; there is no rolling baseline
// for queue depth so it is normalized against this fixed constant rather
// than a z-score.
const queueSaturationDepth = 20.0

// vitalsMetrics is the subset of an agent's raw health_metrics the
// composite score reads, matching the Agent.health_metrics comment
// (latency_ms, error_rate, cpu, mem) plus an optional queue_depth.
type vitalsMetrics struct {
	latencyMS  float64
	errorRate  float64
	cpu        float64
	mem        float64
	queueDepth float64
}

func extractMetrics(raw map[string]interface{}) vitalsMetrics {
	return vitalsMetrics{
		latencyMS:  floatAt(raw, "latency_ms"),
		errorRate:  floatAt(raw, "error_rate"),
		cpu:        floatAt(raw, "cpu"),
		mem:        floatAt(raw, "mem"),
		queueDepth: floatAt(raw, "queue_depth"),
	}
}

func floatAt(raw map[string]interface{}, key string) float64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// zScore returns |value-mean|/stddev, or 0 when stddev is non-positive (no
// meaningful baseline spread yet).
func zScore(value, mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return math.Abs(value-mean) / stddev
}

// ComputeAnomalyScore produces the composite in [0,1] described by the
// engine's anomaly model: four components (latency, error rate, cpu/mem
// skew, queue impact), each clamped to `cap` before summing, clamped again
// in total. baseline may be nil (no history yet), in which case every
// baseline-derived component is 0 and only queue impact can contribute.
func ComputeAnomalyScore(raw map[string]interface{}, baseline *ent.AgentBaseline, cap float64) float64 {
	m := extractMetrics(raw)

	var latencyComponent, errorComponent, resourceComponent float64
	if baseline != nil {
		latencyComponent = clamp(zScore(m.latencyMS, baseline.LatencyMeanMs, baseline.LatencyStddevMs)/3, 0, cap)
		errorComponent = clamp(math.Abs(m.errorRate-baseline.ErrorRate), 0, cap)
		cpuSkew := math.Abs(m.cpu - baseline.CPUBaseline)
		memSkew := math.Abs(m.mem - baseline.MemBaseline)
		resourceComponent = clamp(math.Max(cpuSkew, memSkew), 0, cap)
	}
	queueComponent := clamp(m.queueDepth/queueSaturationDepth, 0, cap)

	total := latencyComponent + errorComponent + resourceComponent + queueComponent
	return clamp(total, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
