// Package orchestratorapi implements the HTTP contract a Sandbox Worker
// runtime (C6) calls back into: event submission, message injection,
// heartbeats, and conversation registration (§6.1).
package orchestratorapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgekit/autoforge/pkg/eventbus"
	"github.com/forgekit/autoforge/pkg/heartbeat"
	"github.com/forgekit/autoforge/pkg/masking"
	"github.com/forgekit/autoforge/pkg/store"
)

// Server is the orchestrator's worker-facing HTTP API.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	store     *store.Store
	bus       *eventbus.Bus
	heartbeat *heartbeat.Engine
	masker    *masking.Service
	messages  *MessageQueue
	live      *eventbus.LiveTransport

	longPollWait time.Duration
}

// NewServer wires a Server from its dependencies and registers every route.
func NewServer(st *store.Store, bus *eventbus.Bus, hb *heartbeat.Engine, masker *masking.Service) *Server {
	s := &Server{
		engine:       gin.New(),
		store:        st,
		bus:          bus,
		heartbeat:    hb,
		masker:       masker,
		messages:     NewMessageQueue(),
		live:         eventbus.NewLiveTransport(bus),
		longPollWait: defaultLongPollWait,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// Engine exposes the underlying gin.Engine, mainly for tests that drive
// requests through httptest without a listening socket.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	s.engine.POST("/sandbox/events", s.postEventHandler)
	s.engine.POST("/sandbox/:sandbox_id/messages", s.postMessageHandler)
	s.engine.GET("/sandbox/:sandbox_id/messages", s.getMessagesHandler)
	s.engine.POST("/sandbox/sync-summary", s.postSyncSummaryHandler)
	s.engine.POST("/heartbeats", s.postHeartbeatHandler)
	s.engine.POST("/conversations/register", s.postRegisterConversationHandler)

	s.engine.GET("/events/live", s.liveEventsHandler)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, used by
// tests that want a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
