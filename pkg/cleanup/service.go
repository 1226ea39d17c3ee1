// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
)

// Service periodically enforces retention policies:
//   - Archives specs that completed more than SpecRetentionDays ago
//   - Deletes sandbox events past SandboxEventTTL
//   - Deletes heartbeats past HeartbeatTTL
//   - Deletes cost records past CostRecordRetentionDays
//
// All operations are idempotent and safe to run from multiple orchestrator
// replicas.
type Service struct {
	config *config.RetentionConfig
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, st *store.Store) *Service {
	return &Service{
		config: cfg,
		store:  st,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"spec_retention_days", s.config.SpecRetentionDays,
		"sandbox_event_ttl", s.config.SandboxEventTTL,
		"heartbeat_ttl", s.config.HeartbeatTTL,
		"cost_record_retention_days", s.config.CostRecordRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.archiveOldSpecs(ctx)
	s.deleteOldSandboxEvents(ctx)
	s.deleteOldHeartbeats(ctx)
	s.deleteOldCostRecords(ctx)
}

func (s *Service) archiveOldSpecs(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.SpecRetentionDays) * 24 * time.Hour)
	specs, err := s.store.ListArchivableSpecs(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: list archivable specs failed", "error", err)
		return
	}

	archived := 0
	for _, sp := range specs {
		if err := s.store.ArchiveSpec(ctx, sp.ID); err != nil {
			slog.Error("Retention: archive spec failed", "spec_id", sp.ID, "error", err)
			continue
		}
		archived++
	}
	if archived > 0 {
		slog.Info("Retention: archived old specs", "count", archived)
	}
}

func (s *Service) deleteOldSandboxEvents(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.SandboxEventTTL)
	count, err := s.store.DeleteEventsOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: sandbox event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old sandbox events", "count", count)
	}
}

func (s *Service) deleteOldHeartbeats(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.HeartbeatTTL)
	count, err := s.store.DeleteHeartbeatsOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: heartbeat cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old heartbeats", "count", count)
	}
}

func (s *Service) deleteOldCostRecords(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.config.CostRecordRetentionDays) * 24 * time.Hour)
	count, err := s.store.DeleteCostRecordsOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: cost record cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old cost records", "count", count)
	}
}
