package store

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/sandboxresourceallocation"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// GetAllocation fetches the resource envelope for a sandbox.
func (s *Store) GetAllocation(ctx context.Context, sandboxID string) (*ent.SandboxResourceAllocation, error) {
	a, err := s.db.SandboxResourceAllocation.Query().
		Where(sandboxresourceallocation.SandboxIDEQ(sandboxID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("sandbox_resource_allocation", sandboxID)
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	return a, nil
}

// CreateAllocation records the initial resource envelope requested when a
// sandbox is provisioned.
func (s *Store) CreateAllocation(ctx context.Context, id, sandboxID string, cpu float64, memBytes, diskBytes int64) (*ent.SandboxResourceAllocation, error) {
	a, err := s.db.SandboxResourceAllocation.Create().
		SetID(id).
		SetSandboxID(sandboxID).
		SetCPUCurrent(cpu).
		SetMemoryCurrentBytes(memBytes).
		SetDiskCurrentBytes(diskBytes).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create allocation: %w", err)
	}
	return a, nil
}

// ProposeResize stages a pending resize for the guardian's resize_resources
// action or the orchestrator worker's autoscale decision; ApplyResize
// commits it once the sandbox provider confirms the resize succeeded.
func (s *Store) ProposeResize(ctx context.Context, sandboxID string, cpu *float64, memBytes, diskBytes *int64, updatedBy string) error {
	update := s.db.SandboxResourceAllocation.Update().
		Where(sandboxresourceallocation.SandboxIDEQ(sandboxID)).
		SetUpdatedBy(updatedBy)
	if cpu != nil {
		update = update.SetCPUPending(*cpu)
	}
	if memBytes != nil {
		update = update.SetMemoryPendingBytes(*memBytes)
	}
	if diskBytes != nil {
		update = update.SetDiskPendingBytes(*diskBytes)
	}
	n, err := update.Save(ctx)
	if err != nil {
		return fmt.Errorf("propose resize: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("sandbox_resource_allocation", sandboxID)
	}
	return nil
}

// ApplyResize promotes a sandbox's pending envelope to current under an
// optimistic version check, clearing the pending fields afterward.
func (s *Store) ApplyResize(ctx context.Context, sandboxID string, expectedVersion int) (*ent.SandboxResourceAllocation, error) {
	a, err := s.GetAllocation(ctx, sandboxID)
	if err != nil {
		return nil, err
	}

	update := a.Update().Where(sandboxresourceallocation.VersionEQ(expectedVersion)).AddVersion(1)
	if a.CPUPending != nil {
		update = update.SetCPUCurrent(*a.CPUPending).ClearCPUPending()
	}
	if a.MemoryPendingBytes != nil {
		update = update.SetMemoryCurrentBytes(*a.MemoryPendingBytes).ClearMemoryPendingBytes()
	}
	if a.DiskPendingBytes != nil {
		update = update.SetDiskCurrentBytes(*a.DiskPendingBytes).ClearDiskPendingBytes()
	}

	n, err := update.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply resize: %w", err)
	}
	if n == 0 {
		return nil, apperrors.NewVersionConflictError("sandbox_resource_allocation", sandboxID, expectedVersion, a.Version)
	}
	return s.GetAllocation(ctx, sandboxID)
}
