package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyChecksum_MatchesAndDetectsTamper(t *testing.T) {
	metrics := map[string]interface{}{"latency_ms": 120.0, "error_rate": 0.01}
	v := Vitals{
		AgentID:  "a-1",
		Sequence: 5,
		Status:   "RUNNING",
		Metrics:  metrics,
	}
	v.Checksum = Checksum(v.AgentID, v.Sequence, v.Status, v.Metrics)
	assert.True(t, verifyChecksum(v))

	tampered := v
	tampered.Sequence = 6
	assert.False(t, verifyChecksum(tampered))
}

func TestChecksum_StableAcrossMapKeyOrder(t *testing.T) {
	m1 := map[string]interface{}{"a": 1.0, "b": 2.0}
	m2 := map[string]interface{}{"b": 2.0, "a": 1.0}
	assert.Equal(t, Checksum("agent", 1, "IDLE", m1), Checksum("agent", 1, "IDLE", m2))
}
