package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultHeartbeatConfigEscalationIsMonotonic(t *testing.T) {
	h := DefaultHeartbeatConfig()
	assert.Less(t, h.WarnThreshold, h.DegradedThreshold)
	assert.Less(t, h.DegradedThreshold, h.GuardianThreshold)
	assert.Less(t, h.GuardianThreshold, h.FailedThreshold)
}

func TestDefaultHeartbeatConfigAnomalyBounds(t *testing.T) {
	h := DefaultHeartbeatConfig()
	assert.GreaterOrEqual(t, h.QuarantineAnomalyThreshold, h.AnomalyComponentCap)
	assert.LessOrEqual(t, h.QuarantineAnomalyThreshold, 1.0)
}
