package sandboxworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/pkg/codingagent"
)

// fakeAgentSession replays a fixed sequence of block sets, one per Turn
// call, so tests can script a full drive loop deterministically.
type fakeAgentSession struct {
	turns [][]codingagent.Block
	calls int
}

func (f *fakeAgentSession) Turn(_ context.Context, _ string, _ string) (<-chan codingagent.Block, error) {
	idx := f.calls
	f.calls++
	out := make(chan codingagent.Block, len(f.turns[idx]))
	for _, b := range f.turns[idx] {
		out <- b
	}
	close(out)
	return out, nil
}

func testConfig() *Config {
	return &Config{
		SandboxID:           "sbx-1",
		CallbackURL:         "http://example.invalid",
		MaxBudgetUSD:        100,
		MaxTurns:            100,
		MaxDurationS:        time.Hour,
		CompletionSignal:    "TASK_COMPLETE",
		CompletionThreshold: 1,
	}
}

func TestRunner_Run_CompletesOnSignal(t *testing.T) {
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{
			codingagent.TextBlock{Content: "working on it"},
			codingagent.UsageBlock{CostUSD: 0.1},
			codingagent.CompletionSignalBlock{Signal: "TASK_COMPLETE"},
		},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(testConfig(), agent, reporter, nil, nil)

	outcome := r.Run(context.Background())
	assert.Equal(t, "completed", outcome.Status)
	assert.InDelta(t, 0.1, outcome.TotalCostUSD, 0.0001)

	events := reporter.All()
	require.NotEmpty(t, events)
	assert.Equal(t, "agent.completed", events[len(events)-1].EventType)
}

func TestRunner_Run_BudgetExhaustedOnCost(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBudgetUSD = 0.05
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{codingagent.UsageBlock{CostUSD: 1.0}},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(cfg, agent, reporter, nil, nil)

	outcome := r.Run(context.Background())
	assert.Equal(t, "budget_exhausted", outcome.Status)
	assert.Equal(t, "cost", outcome.Reason)
}

func TestRunner_Run_FailsOnErrorBlock(t *testing.T) {
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{codingagent.ErrorBlock{Message: "boom"}},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(testConfig(), agent, reporter, nil, nil)

	outcome := r.Run(context.Background())
	assert.Equal(t, "failed", outcome.Status)
}

func TestRunner_Run_ContinuousModeReprompts(t *testing.T) {
	cfg := testConfig()
	cfg.ContinuousMode = true
	cfg.ContinuousMaxRuns = 3
	cfg.CompletionThreshold = 2
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{codingagent.CompletionSignalBlock{Signal: "TASK_COMPLETE"}},
		{codingagent.CompletionSignalBlock{Signal: "TASK_COMPLETE"}},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(cfg, agent, reporter, nil, nil)

	outcome := r.Run(context.Background())
	assert.Equal(t, "completed", outcome.Status)
	assert.Equal(t, 2, agent.calls)
}

type fakeMessagePoller struct {
	messages []Message
	acked    []Message
}

func (f *fakeMessagePoller) Poll(context.Context) ([]Message, error) { return f.messages, nil }
func (f *fakeMessagePoller) Ack(delivered []Message)                 { f.acked = delivered }

func TestRunner_NextMessage_StopsOnInterrupt(t *testing.T) {
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{codingagent.TextBlock{Content: "still going"}},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(testConfig(), agent, reporter, nil, nil)

	fp := &fakeMessagePoller{messages: []Message{{ID: "m1", Type: MessageInterrupt}}}
	r.poller = fp
	_, stop := r.nextMessage(context.Background())
	assert.True(t, stop)
	assert.Len(t, fp.acked, 1)
}

func TestRunner_NextMessage_CombinesUserMessages(t *testing.T) {
	agent := &fakeAgentSession{turns: [][]codingagent.Block{
		{codingagent.TextBlock{Content: "still going"}},
	}}
	reporter := &ArrayReporter{}
	r := NewRunner(testConfig(), agent, reporter, nil, nil)

	fp := &fakeMessagePoller{messages: []Message{{ID: "m1", Type: MessageUser, Body: map[string]interface{}{"text": "please hurry"}}}}
	r.poller = fp
	msg, stop := r.nextMessage(context.Background())
	assert.False(t, stop)
	assert.Contains(t, msg, "please hurry")
}
