// Package codingagent is the HTTP/SSE client the Sandbox Worker Runtime
// (C6) uses to drive the coding agent running alongside it inside the
// sandbox. The coding agent itself speaks a small streaming protocol over
// loopback HTTP: a session carries a system prompt and task context in,
// and a stream of typed blocks (text, thinking, tool_use, tool_result) out.
package codingagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/forgekit/autoforge/pkg/config"
)

// Client talks to one coding-agent process over HTTP/SSE.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// New creates a Client from a resolved coding-agent provider config.
// apiKey is resolved by the caller from cfg.APIKeyEnv — the client never
// reads the environment itself.
func New(cfg *config.CodingAgentProviderConfig, apiKey string) *Client {
	timeout := 120 * time.Second
	if cfg.RequestTimeoutS > 0 {
		timeout = time.Duration(cfg.RequestTimeoutS) * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     apiKey,
		model:      cfg.Model,
	}
}

// SessionRequest opens (or resumes) a streaming session with the coding
// agent (§4.6 step 2).
type SessionRequest struct {
	TaskID              string
	SystemPrompt        string
	TaskContext         string
	ResumeSessionID     string
	SessionTranscriptB64 string
	AllowedTools        []string
	PermissionMode      string
}

// Turn sends one user turn (the initial task context, or a later injected
// message) and streams the agent's response blocks until the turn ends.
func (c *Client) Turn(ctx context.Context, sessionID string, message string) (<-chan Block, error) {
	body, err := json.Marshal(turnRequestBody{
		Model:     c.model,
		SessionID: sessionID,
		Message:   message,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/turns", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coding-agent turn request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coding-agent turn request failed with status %d: %s", resp.StatusCode, string(b))
	}

	out := make(chan Block, 16)
	go streamBlocks(resp.Body, out)
	return out, nil
}

type turnRequestBody struct {
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

// streamBlocks parses an SSE stream of `data: {...}` lines into typed
// Blocks, closing out when the stream ends or resp.Body is exhausted.
func streamBlocks(body io.ReadCloser, out chan<- Block) {
	defer body.Close()
	defer close(out)

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSpace(line)
			if bytes.HasPrefix(line, []byte("data: ")) {
				payload := line[len("data: "):]
				if bytes.Equal(payload, []byte("[DONE]")) {
					return
				}
				var raw rawBlock
				if jsonErr := json.Unmarshal(payload, &raw); jsonErr == nil {
					if blk, ok := decodeBlock(raw); ok {
						out <- blk
					}
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				out <- ErrorBlock{Message: err.Error()}
			}
			return
		}
	}
}

// CompletionRequest is a single-shot (non-streaming, non-turn) completion
// used outside the sandbox worker's main drive loop — e.g. the Merge
// Coordinator's bounded conflict-resolution calls (§4.9).
type CompletionRequest struct {
	Model  string
	Prompt string
}

// CompletionResponse is the result of a one-shot completion.
type CompletionResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Complete issues a single non-streaming completion request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body, err := json.Marshal(struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: model, Prompt: req.Prompt})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("coding-agent completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return CompletionResponse{}, fmt.Errorf("coding-agent completion request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Text  string `json:"text"`
		Usage struct {
			PromptTokens     int     `json:"prompt_tokens"`
			CompletionTokens int     `json:"completion_tokens"`
			CostUSD          float64 `json:"cost_usd"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode completion response: %w", err)
	}
	return CompletionResponse{
		Text:             out.Text,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		CostUSD:          out.Usage.CostUSD,
	}, nil
}
