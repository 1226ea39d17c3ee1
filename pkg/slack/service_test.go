package slack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgekit/autoforge/pkg/config"
)

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	t.Run("NotifyGuardianAction is no-op", func(t *testing.T) {
		result := s.NotifyGuardianAction(context.Background(), GuardianActionInput{
			ActionID: "ga-1",
			AgentID:  "agent-1",
			Status:   "proposed",
		})
		assert.Empty(t, result)
	})

	t.Run("NotifyBudgetAlert is no-op", func(_ *testing.T) {
		s.NotifyBudgetAlert(context.Background(), BudgetAlertInput{ScopeType: "task", ScopeID: "task-1"})
	})
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when disabled", func(t *testing.T) {
		svc := NewService(&config.SlackConfig{Enabled: false, Channel: "C123"}, "xoxb-test")
		assert.Nil(t, svc)
	})

	t.Run("returns nil when token empty", func(t *testing.T) {
		svc := NewService(&config.SlackConfig{Enabled: true, Channel: "C123"}, "")
		assert.Nil(t, svc)
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		svc := NewService(&config.SlackConfig{Enabled: true}, "xoxb-test")
		assert.Nil(t, svc)
	})

	t.Run("returns nil config", func(t *testing.T) {
		svc := NewService(nil, "xoxb-test")
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(&config.SlackConfig{
			Enabled:      true,
			Channel:      "C123",
			DashboardURL: "https://example.com",
		}, "xoxb-test")
		assert.NotNil(t, svc)
	})
}
