package heartbeat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Checksum computes the digest an agent is expected to send alongside a
// heartbeat: a hex-encoded SHA-256 over the sequence number, status, and
// metrics, in that fixed order so both sides compute the same bytes
// regardless of map key ordering.
func Checksum(agentID string, sequence int64, status string, metrics map[string]interface{}) string {
	canonical, _ := json.Marshal(metrics)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s", agentID, sequence, status, canonical)))
	return hex.EncodeToString(sum[:])
}

func verifyChecksum(v Vitals) bool {
	return Checksum(v.AgentID, v.Sequence, v.Status, v.Metrics) == v.Checksum
}
