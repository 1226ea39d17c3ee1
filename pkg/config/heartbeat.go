package config

import "time"

// HeartbeatConfig controls the Heartbeat/Anomaly Engine (C3): the expected
// cadence of agent heartbeats and the missed-heartbeat escalation ladder.
//
//	1 missed heartbeat  → Warn
//	2-3 missed          → mark agent DEGRADED
//	4-5 missed          → escalate to Guardian
//	>=6 missed          → mark agent FAILED
type HeartbeatConfig struct {
	// Interval is the expected spacing between heartbeats from a healthy agent.
	Interval time.Duration `yaml:"interval"`

	// WarnThreshold is the missed-heartbeat count that produces a log warning.
	WarnThreshold int `yaml:"warn_threshold"`

	// DegradedThreshold is the missed-heartbeat count that moves the agent to DEGRADED.
	DegradedThreshold int `yaml:"degraded_threshold"`

	// GuardianThreshold is the missed-heartbeat count that escalates to the Guardian.
	GuardianThreshold int `yaml:"guardian_threshold"`

	// FailedThreshold is the missed-heartbeat count that marks the agent FAILED.
	FailedThreshold int `yaml:"failed_threshold"`

	// OrphanDetectionInterval is how often the sweep for orphaned agents runs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// AnomalyComponentCap bounds any single anomaly-score component
	// (latency, error rate, resource deviation) before summation, so one
	// misbehaving metric cannot alone trip quarantine.
	AnomalyComponentCap float64 `yaml:"anomaly_component_cap"`

	// QuarantineAnomalyThreshold is the composite anomaly score (0-1, clamped)
	// at or above which an agent is quarantined pending Guardian review.
	QuarantineAnomalyThreshold float64 `yaml:"quarantine_anomaly_threshold"`

	// FailureGraceWindow is how long a FAILED agent sits before the sweep
	// moves it to QUARANTINED for human/Guardian inspection.
	FailureGraceWindow time.Duration `yaml:"failure_grace_window"`
}

// DefaultHeartbeatConfig returns the built-in heartbeat defaults.
func DefaultHeartbeatConfig() *HeartbeatConfig {
	return &HeartbeatConfig{
		Interval:                   10 * time.Second,
		WarnThreshold:              1,
		DegradedThreshold:          2,
		GuardianThreshold:          4,
		FailedThreshold:            6,
		OrphanDetectionInterval:    30 * time.Second,
		AnomalyComponentCap:        0.35,
		QuarantineAnomalyThreshold: 0.8,
		FailureGraceWindow:         60 * time.Second,
	}
}
