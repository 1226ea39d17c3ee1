package orchestratorapi

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/pkg/sandboxworker"
)

// defaultLongPollWait bounds how long GET /sandbox/{id}/messages blocks
// waiting for a fresh message before returning an empty page (§6.1's
// "long-poll returns ordered message list + next cursor").
const defaultLongPollWait = 20 * time.Second

// sandboxQueue holds the ordered message backlog for one sandbox plus a
// broadcast channel that every blocked long-poll replaces on each append,
// the same closed-channel-broadcast idiom eventbus.Bus uses per subscriber
// queue, scoped here to "any waiter for this sandbox" instead of per-reader.
type sandboxQueue struct {
	messages []sandboxworker.Message
	notify   chan struct{}
}

// MessageQueue is the orchestrator-side counterpart to
// pkg/sandboxworker.Poller: producers (guardian nudges, operator chat,
// system messages) enqueue here, and each sandbox's Poller drains them via
// a cursor-based long-poll.
type MessageQueue struct {
	mu        sync.Mutex
	bySandbox map[string]*sandboxQueue
}

// NewMessageQueue creates an empty MessageQueue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{bySandbox: make(map[string]*sandboxQueue)}
}

func (q *MessageQueue) queueFor(sandboxID string) *sandboxQueue {
	sq, ok := q.bySandbox[sandboxID]
	if !ok {
		sq = &sandboxQueue{notify: make(chan struct{})}
		q.bySandbox[sandboxID] = sq
	}
	return sq
}

// Enqueue appends a message for sandboxID and wakes any blocked poller.
func (q *MessageQueue) Enqueue(sandboxID string, msgType sandboxworker.MessageType, body map[string]interface{}) sandboxworker.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	sq := q.queueFor(sandboxID)
	msg := sandboxworker.Message{
		ID:     uuid.NewString(),
		Type:   msgType,
		Cursor: strconv.Itoa(len(sq.messages) + 1),
		Body:   body,
	}
	sq.messages = append(sq.messages, msg)
	close(sq.notify)
	sq.notify = make(chan struct{})
	return msg
}

// Poll returns every message for sandboxID after cursor, waiting up to
// wait for at least one to arrive if the backlog is already caught up. A
// zero wait never blocks. The returned next cursor is the cursor of the
// last message returned, or the input cursor unchanged if none were.
func (q *MessageQueue) Poll(ctx context.Context, sandboxID, cursor string, wait time.Duration) ([]sandboxworker.Message, string) {
	after := parseCursor(cursor)

	for {
		q.mu.Lock()
		sq := q.queueFor(sandboxID)
		fresh := messagesAfter(sq.messages, after)
		if len(fresh) > 0 || wait <= 0 {
			q.mu.Unlock()
			next := cursor
			if len(fresh) > 0 {
				next = fresh[len(fresh)-1].Cursor
			}
			return fresh, next
		}
		notify := sq.notify
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-notify:
			timer.Stop()
			wait = 0 // next loop iteration returns immediately with whatever's there
		case <-timer.C:
			return nil, cursor
		case <-ctx.Done():
			timer.Stop()
			return nil, cursor
		}
	}
}

func messagesAfter(messages []sandboxworker.Message, after int) []sandboxworker.Message {
	var out []sandboxworker.Message
	for _, m := range messages {
		if parseCursor(m.Cursor) > after {
			out = append(out, m)
		}
	}
	return out
}

func parseCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	n, err := strconv.Atoi(cursor)
	if err != nil {
		return 0
	}
	return n
}
