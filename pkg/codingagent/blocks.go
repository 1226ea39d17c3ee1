package codingagent

// Block is one streamed unit of a coding-agent turn — text, thinking,
// tool use, a tool result, a usage summary, or a terminal error. Mirrors
// the dotted SandboxEvent event_type taxonomy in §4.6 (agent.thinking,
// agent.tool_use, agent.tool_result, agent.text).
type Block interface {
	blockType() string
}

// TextBlock is a chunk of the agent's visible response text.
type TextBlock struct {
	Content string
}

func (TextBlock) blockType() string { return "agent.text" }

// ThinkingBlock is a chunk of the agent's internal reasoning.
type ThinkingBlock struct {
	Content string
}

func (ThinkingBlock) blockType() string { return "agent.thinking" }

// ToolUseBlock signals the agent invoking a tool.
type ToolUseBlock struct {
	CallID string
	Name   string
	Input  map[string]interface{}
}

func (ToolUseBlock) blockType() string { return "agent.tool_use" }

// ToolResultBlock carries a tool's output, including the minimal unified
// diff for any file the tool wrote or edited (§4.6's file-change tracking).
type ToolResultBlock struct {
	CallID   string
	Output   string
	IsError  bool
	FilePath string `json:"file_path,omitempty"`
	Diff     string `json:"diff,omitempty"`
}

func (ToolResultBlock) blockType() string { return "agent.tool_result" }

// UsageBlock reports token/cost consumption for the turn just completed.
type UsageBlock struct {
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

func (UsageBlock) blockType() string { return "usage" }

// CompletionSignalBlock marks the agent declaring the task complete, used
// by continuous mode to decide whether to stop or re-prompt (§4.6 step 4).
type CompletionSignalBlock struct {
	Signal string
}

func (CompletionSignalBlock) blockType() string { return "agent.completion_signal" }

// ErrorBlock is a terminal error from the coding-agent stream.
type ErrorBlock struct {
	Message string
}

func (ErrorBlock) blockType() string { return "agent.error" }

// rawBlock is the wire shape every block type is decoded from.
type rawBlock struct {
	Type             string                 `json:"type"`
	Content          string                 `json:"content"`
	CallID           string                 `json:"call_id"`
	Name             string                 `json:"name"`
	Input            map[string]interface{} `json:"input"`
	Output           string                 `json:"output"`
	IsError          bool                   `json:"is_error"`
	FilePath         string                 `json:"file_path"`
	Diff             string                 `json:"diff"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	CostUSD          float64                `json:"cost_usd"`
	Signal           string                 `json:"signal"`
	Message          string                 `json:"message"`
}

func decodeBlock(raw rawBlock) (Block, bool) {
	switch raw.Type {
	case "text":
		return TextBlock{Content: raw.Content}, true
	case "thinking":
		return ThinkingBlock{Content: raw.Content}, true
	case "tool_use":
		return ToolUseBlock{CallID: raw.CallID, Name: raw.Name, Input: raw.Input}, true
	case "tool_result":
		return ToolResultBlock{CallID: raw.CallID, Output: raw.Output, IsError: raw.IsError, FilePath: raw.FilePath, Diff: raw.Diff}, true
	case "usage":
		return UsageBlock{PromptTokens: raw.PromptTokens, CompletionTokens: raw.CompletionTokens, CostUSD: raw.CostUSD}, true
	case "completion_signal":
		return CompletionSignalBlock{Signal: raw.Signal}, true
	case "error":
		return ErrorBlock{Message: raw.Message}, true
	default:
		return nil, false
	}
}
