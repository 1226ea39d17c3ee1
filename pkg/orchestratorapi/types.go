package orchestratorapi

import "github.com/forgekit/autoforge/pkg/sandboxworker"

// eventRequest is the body of POST /sandbox/events (§6.1).
type eventRequest struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type" binding:"required"`
	EventData map[string]interface{} `json:"event_data"`
	Source    string                 `json:"source" binding:"required"`
	SpecID    string                 `json:"spec_id"`
	TaskID    string                 `json:"task_id"`
}

// enqueueMessageRequest is the body of POST /sandbox/{sandbox_id}/messages.
type enqueueMessageRequest struct {
	Type sandboxworker.MessageType `json:"type" binding:"required"`
	Body map[string]interface{}    `json:"body"`
}

// pollMessagesResponse mirrors sandboxworker's pollResponse wire shape
// exactly, so Poller.Poll decodes it without translation.
type pollMessagesResponse struct {
	Messages   []sandboxworker.Message `json:"messages"`
	NextCursor string                  `json:"next_cursor"`
}

// syncSummaryRequest is the body of POST /sandbox/sync-summary — the final
// phase_data/transcript upload for a Spec Phase State Machine (C7) phase
// run inside a sandbox (§4.7 step 4, §6.1).
type syncSummaryRequest struct {
	SpecID           string                 `json:"spec_id" binding:"required"`
	Phase            string                 `json:"phase" binding:"required"`
	PhaseData        map[string]interface{} `json:"phase_data"`
	TranscriptBase64 string                 `json:"session_transcript"`
}

// registerConversationRequest is the body of POST /conversations/register.
type registerConversationRequest struct {
	TaskID         string `json:"task_id" binding:"required"`
	SandboxID      string `json:"sandbox_id" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
}
