package sandboxworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forgekit/autoforge/pkg/heartbeat"
)

// HeartbeatEmitter periodically posts heartbeat.Vitals to the
// orchestrator's `POST /heartbeats` endpoint (§4.3, §6.1), computing the
// same checksum the Heartbeat & Anomaly Engine verifies on receipt.
type HeartbeatEmitter struct {
	client      *http.Client
	callbackURL string
	agentID     string
	sequence    int64
}

// NewHeartbeatEmitter builds an emitter for one agent's heartbeat stream.
func NewHeartbeatEmitter(callbackURL, agentID string) *HeartbeatEmitter {
	return &HeartbeatEmitter{
		client:      &http.Client{Timeout: 10 * time.Second},
		callbackURL: callbackURL,
		agentID:     agentID,
	}
}

// Beat sends one heartbeat carrying the given status, current task, and
// metrics, advancing the monotone sequence number.
func (e *HeartbeatEmitter) Beat(ctx context.Context, status string, currentTask *string, metrics map[string]interface{}) error {
	e.sequence++
	v := heartbeat.Vitals{
		AgentID:     e.agentID,
		Sequence:    e.sequence,
		Status:      status,
		CurrentTask: currentTask,
		Metrics:     metrics,
		Checksum:    heartbeat.Checksum(e.agentID, e.sequence, status, metrics),
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.callbackURL+"/heartbeats", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("heartbeat rejected with status %d", resp.StatusCode)
	}
	return nil
}

// Run emits a heartbeat on every tick until ctx is cancelled, using
// statusFn/metricsFn to pull live values at send time rather than
// capturing them once at Run's call site.
func (e *HeartbeatEmitter) Run(ctx context.Context, interval time.Duration, statusFn func() (string, *string, map[string]interface{})) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, task, metrics := statusFn()
			_ = e.Beat(ctx, status, task, metrics)
		}
	}
}
