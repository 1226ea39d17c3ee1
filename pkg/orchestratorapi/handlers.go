package orchestratorapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forgekit/autoforge/pkg/apperrors"
	"github.com/forgekit/autoforge/pkg/eventbus"
	"github.com/forgekit/autoforge/pkg/heartbeat"
	"github.com/forgekit/autoforge/pkg/sandboxworker"
)

// postEventHandler implements POST /sandbox/events. Persistence and live
// fan-out both happen through bus.Publish, whose configured
// eventbus.SandboxEventSink appends the row idempotently by id.
func (s *Server) postEventHandler(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sandboxID := c.Query("sandbox_id")
	if sandboxID == "" {
		sandboxID, _ = req.EventData["sandbox_id"].(string)
	}
	if sandboxID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sandbox_id is required (query param or event_data field)"})
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	payload := make(map[string]interface{}, len(req.EventData)+4)
	for k, v := range req.EventData {
		payload[k] = v
	}
	if s.masker != nil {
		payload = s.masker.MaskEventData(payload)
	}
	payload["id"] = id
	payload["source"] = req.Source
	if req.SpecID != "" {
		payload["spec_id"] = req.SpecID
	}
	if req.TaskID != "" {
		payload["task_id"] = req.TaskID
	}

	env := eventbus.Envelope{
		EventType:  req.EventType,
		EntityType: "sandbox",
		EntityID:   sandboxID,
		Payload:    payload,
		At:         time.Now(),
	}
	if err := s.bus.Publish(env); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

// postMessageHandler implements the producer side of
// POST /sandbox/{sandbox_id}/messages — queueing a message for injection.
func (s *Server) postMessageHandler(c *gin.Context) {
	sandboxID := c.Param("sandbox_id")

	var req enqueueMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := s.messages.Enqueue(sandboxID, req.Type, req.Body)
	c.JSON(http.StatusAccepted, gin.H{"id": msg.ID, "cursor": msg.Cursor})
}

// getMessagesHandler implements the consumer side of
// GET /sandbox/{sandbox_id}/messages?cursor= — a long-poll drained by
// pkg/sandboxworker.Poller.
func (s *Server) getMessagesHandler(c *gin.Context) {
	sandboxID := c.Param("sandbox_id")
	cursor := c.Query("cursor")

	messages, next := s.messages.Poll(c.Request.Context(), sandboxID, cursor, s.longPollWait)
	if next == "" {
		next = cursor
	}
	if messages == nil {
		messages = make([]sandboxworker.Message, 0)
	}
	c.JSON(http.StatusOK, pollMessagesResponse{Messages: messages, NextCursor: next})
}

// postSyncSummaryHandler implements POST /sandbox/sync-summary — the final
// phase_data/transcript upload for a phase run inside a sandbox (§4.7 step 4).
func (s *Server) postSyncSummaryHandler(c *gin.Context) {
	var req syncSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.RecordSyncSummary(c.Request.Context(), req.SpecID, req.Phase, req.PhaseData, req.TranscriptBase64); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// postHeartbeatHandler implements POST /heartbeats, the heartbeat payload
// of §4.3, handed straight to the Heartbeat & Anomaly Engine (C3).
func (s *Server) postHeartbeatHandler(c *gin.Context) {
	var v heartbeat.Vitals
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack, err := s.heartbeat.Accept(c.Request.Context(), v, c.Query("phase"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ack)
}

// postRegisterConversationHandler implements POST /conversations/register,
// binding (task_id, sandbox_id, conversation_id).
func (s *Server) postRegisterConversationHandler(c *gin.Context) {
	var req registerConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.RegisterConversation(c.Request.Context(), req.TaskID, req.SandboxID, req.ConversationID); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

// liveEventsHandler upgrades to a WebSocket and streams matching envelopes
// via the Event Bus's live transport, for the operator dashboard and the
// CLI's `spec show --watch`.
func (s *Server) liveEventsHandler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	s.live.HandleConnection(c.Request.Context(), conn)
}

func writeStoreError(c *gin.Context, err error) {
	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
