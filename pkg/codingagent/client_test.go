package codingagent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&config.CodingAgentProviderConfig{
		Type:    config.LLMProviderTypeAnthropic,
		BaseURL: server.URL,
		Model:   "claude-test",
	}, "test-key")
}

func TestTurn_StreamsDecodedBlocks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"thinking\",\"content\":\"considering\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"content\":\"hello\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"tool_use\",\"call_id\":\"c1\",\"name\":\"write_file\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"tool_result\",\"call_id\":\"c1\",\"output\":\"ok\",\"file_path\":\"a.go\",\"diff\":\"+x\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	})

	ch, err := client.Turn(context.Background(), "session-1", "do the thing")
	require.NoError(t, err)

	var blocks []Block
	for b := range ch {
		blocks = append(blocks, b)
	}

	require.Len(t, blocks, 4)
	assert.Equal(t, ThinkingBlock{Content: "considering"}, blocks[0])
	assert.Equal(t, TextBlock{Content: "hello"}, blocks[1])
	toolUse, ok := blocks[2].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "write_file", toolUse.Name)
	toolResult, ok := blocks[3].(ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "a.go", toolResult.FilePath)
	assert.Equal(t, "+x", toolResult.Diff)
}

func TestTurn_SkipsMalformedLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: not-json\n")
		fmt.Fprint(w, "data: {\"type\":\"text\",\"content\":\"ok\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	})

	ch, err := client.Turn(context.Background(), "session-1", "hi")
	require.NoError(t, err)

	var blocks []Block
	for b := range ch {
		blocks = append(blocks, b)
	}
	require.Len(t, blocks, 1)
	assert.Equal(t, TextBlock{Content: "ok"}, blocks[0])
}

func TestTurn_NonOKStatusReturnsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})

	_, err := client.Turn(context.Background(), "session-1", "hi")
	require.Error(t, err)
}

func TestComplete_ParsesUsage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"text":"<resolved>merged</resolved>","usage":{"prompt_tokens":10,"completion_tokens":5,"cost_usd":0.02}}`)
	})

	resp, err := client.Complete(context.Background(), CompletionRequest{Prompt: "resolve this"})
	require.NoError(t, err)
	assert.Equal(t, "<resolved>merged</resolved>", resp.Text)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)
	assert.Equal(t, 0.02, resp.CostUSD)
}

func TestNew_DefaultsTimeoutWhenUnset(t *testing.T) {
	c := New(&config.CodingAgentProviderConfig{BaseURL: "http://example.invalid", Model: "m"}, "")
	assert.Equal(t, 120*time.Second, c.httpClient.Timeout)
}
