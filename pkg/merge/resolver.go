package merge

import (
	"context"

	"github.com/forgekit/autoforge/pkg/codingagent"
)

// AgentResolver resolves a conflict by asking the coding-agent provider to
// produce a merged file, given the base, the already-merged target content,
// and the incoming branch's content. One Resolve call is exactly one LLM
// invocation, counted against MergeConfig.MaxLLMInvocationsPerAttempt.
type AgentResolver struct {
	client *codingagent.Client
	model  string
}

// NewAgentResolver creates a Resolver backed by a coding-agent client.
func NewAgentResolver(client *codingagent.Client, model string) *AgentResolver {
	return &AgentResolver{client: client, model: model}
}

// Resolve asks the coding-agent provider for a conflict-free merge of a
// single file, rendering the three-way conflict as a one-shot completion
// prompt rather than a full agent turn.
func (r *AgentResolver) Resolve(ctx context.Context, conflict Conflict) (Resolution, error) {
	prompt := buildResolutionPrompt(conflict)

	resp, err := r.client.Complete(ctx, codingagent.CompletionRequest{
		Model:  r.model,
		Prompt: prompt,
	})
	if err != nil {
		return Resolution{}, err
	}

	content, ok := extractResolvedContent(resp.Text)
	return Resolution{
		ResolvedContent: content,
		TokensUsed:      resp.PromptTokens + resp.CompletionTokens,
		CostUSD:         resp.CostUSD,
		Resolved:        ok,
	}, nil
}

func buildResolutionPrompt(c Conflict) string {
	return "Resolve the merge conflict below. Base:\n" + c.BaseContent +
		"\n\nCurrent target:\n" + c.TargetContent +
		"\n\nIncoming change:\n" + c.IncomingContent +
		"\n\nReply with only the fully merged file content between <resolved> tags, or <unresolved/> if no safe merge exists."
}

func extractResolvedContent(text string) (string, bool) {
	const openTag, closeTag = "<resolved>", "</resolved>"
	start := indexOf(text, openTag)
	if start < 0 {
		return "", false
	}
	start += len(openTag)
	end := indexOf(text[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return text[start : start+end], true
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
