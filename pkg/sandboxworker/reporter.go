package sandboxworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Event is one reported sandbox artifact, the wire shape of a SandboxEvent
// row before it reaches the Entity Store (§6.1 `POST /sandbox/events`).
type Event struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	EventData map[string]interface{} `json:"event_data"`
	Source    string                 `json:"source"`
	SpecID    string                 `json:"spec_id,omitempty"`
	TaskID    string                 `json:"task_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Reporter is the pluggable event sink the drive loop pushes every agent
// artifact through (§4.6 "Event streaming"). Implementations must
// guarantee at-least-once delivery; the caller is responsible for
// generating a stable Event.ID so downstream consumers can dedup.
type Reporter interface {
	Report(ctx context.Context, evt Event) error
}

// NewEvent stamps a fresh id and timestamp onto an event body.
func NewEvent(eventType, taskID, specID string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		EventData: data,
		Source:    "worker",
		TaskID:    taskID,
		SpecID:    specID,
		Timestamp: time.Now(),
	}
}

// ArrayReporter accumulates events in memory; used by tests and by replay
// tooling that doesn't need a live orchestrator.
type ArrayReporter struct {
	mu     sync.Mutex
	Events []Event
}

func (r *ArrayReporter) Report(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, evt)
	return nil
}

// All returns a snapshot of every event reported so far.
func (r *ArrayReporter) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}

// FileReporter appends newline-delimited JSON to the artifact filesystem's
// events.jsonl (§6.4), used when a sandbox has local disk but the
// orchestrator link is degraded.
type FileReporter struct {
	mu   sync.Mutex
	path string
}

// NewFileReporter opens (creating if absent) the events.jsonl file at path.
func NewFileReporter(path string) *FileReporter {
	return &FileReporter{path: path}
}

func (r *FileReporter) Report(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := openAppend(r.path)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// HTTPReporter posts events to the orchestrator's `POST /sandbox/events`
// endpoint, retrying transient failures with exponential backoff + jitter
// and surfacing permanent ones (§4.6 "Event streaming").
type HTTPReporter struct {
	client      *http.Client
	callbackURL string
	maxRetries  uint64
}

// NewHTTPReporter builds an HTTPReporter posting to callbackURL + "/sandbox/events".
func NewHTTPReporter(callbackURL string) *HTTPReporter {
	return &HTTPReporter{
		client:      &http.Client{Timeout: 30 * time.Second},
		callbackURL: callbackURL,
		maxRetries:  5,
	}
}

func (r *HTTPReporter) Report(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.callbackURL+"/sandbox/events", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build event request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("post event: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("event rejected with status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("event submission failed with status %d", resp.StatusCode)
		}
		return nil
	}, policy)
}

// MultiReporter fans an event out to several reporters, continuing past
// individual failures and returning the first error encountered (if any)
// after every reporter has had a chance to see the event.
type MultiReporter struct {
	Reporters []Reporter
}

func (r MultiReporter) Report(ctx context.Context, evt Event) error {
	var firstErr error
	for _, rep := range r.Reporters {
		if err := rep.Report(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
