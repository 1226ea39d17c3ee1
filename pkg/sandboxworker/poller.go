package sandboxworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MessageType enumerates the kinds of message the orchestrator may inject
// into a running sandbox (§4.6 "Message injection semantics").
type MessageType string

const (
	MessageUser          MessageType = "user_message"
	MessageInterrupt     MessageType = "interrupt"
	MessageGuardianNudge MessageType = "guardian_nudge"
	MessageSystem        MessageType = "system"
)

// Message is one entry in the ordered, at-least-once poll response.
type Message struct {
	ID     string                 `json:"id"`
	Type   MessageType            `json:"type"`
	Cursor string                 `json:"cursor"`
	Body   map[string]interface{} `json:"body"`
}

// IsCancel reports whether a guardian_nudge message is asking for a
// cooperative cancellation (§4.6 "Cancellation").
func (m Message) IsCancel() bool {
	if m.Type != MessageGuardianNudge {
		return false
	}
	cancel, _ := m.Body["cancel"].(bool)
	return cancel
}

type pollResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor"`
}

// Poller pulls injected messages from the orchestrator's long-poll endpoint
// (`GET /sandbox/{sandbox_id}/messages?cursor=`), applying the at-least-once,
// dedup-by-id, ack-after-delivery contract the drive loop depends on.
type Poller struct {
	client      *http.Client
	callbackURL string
	sandboxID   string

	cursor        string
	pendingCursor string
	seen          map[string]struct{}
}

// NewPoller builds a Poller for the given sandbox, starting at the zero
// cursor (the beginning of the message stream).
func NewPoller(callbackURL, sandboxID string) *Poller {
	return &Poller{
		client:      &http.Client{Timeout: 30 * time.Second},
		callbackURL: callbackURL,
		sandboxID:   sandboxID,
		seen:        make(map[string]struct{}),
	}
}

// Poll fetches any messages since the last acknowledged cursor. It does NOT
// advance the cursor itself — the caller acknowledges by calling Ack once
// every returned message has been delivered to the agent (§4.6).
func (p *Poller) Poll(ctx context.Context) ([]Message, error) {
	url := fmt.Sprintf("%s/sandbox/%s/messages?cursor=%s", p.callbackURL, p.sandboxID, p.cursor)

	var resp pollResponse
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build poll request: %w", err))
		}
		httpResp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("poll messages: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("poll rejected with status %d", httpResp.StatusCode))
		}
		if httpResp.StatusCode >= 500 {
			return fmt.Errorf("poll failed with status %d", httpResp.StatusCode)
		}
		return json.NewDecoder(httpResp.Body).Decode(&resp)
	}, policy)
	if err != nil {
		return nil, err
	}

	fresh := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if _, dup := p.seen[m.ID]; dup {
			continue
		}
		fresh = append(fresh, m)
	}
	p.pendingCursor = resp.NextCursor
	return fresh, nil
}

// Ack marks every message up to the last Poll's next cursor as delivered,
// and remembers their ids so a retried poll never redelivers them.
// pendingCursor is kept separate from cursor so a Poll that is never
// Ack'd (the worker dies mid-delivery) replays the same messages on the
// next Poll, preserving the at-least-once guarantee.
func (p *Poller) Ack(delivered []Message) {
	for _, m := range delivered {
		p.seen[m.ID] = struct{}{}
	}
	if p.pendingCursor != "" {
		p.cursor = p.pendingCursor
	}
}
