package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/spec"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// GetSpec fetches a spec by id.
func (s *Store) GetSpec(ctx context.Context, id string) (*ent.Spec, error) {
	sp, err := s.db.Spec.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("spec", id)
		}
		return nil, fmt.Errorf("get spec: %w", err)
	}
	return sp, nil
}

// GetSpecByShareToken resolves a spec from its public share link.
func (s *Store) GetSpecByShareToken(ctx context.Context, token string) (*ent.Spec, error) {
	sp, err := s.db.Spec.Query().Where(spec.ShareTokenEQ(token)).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("spec", "share_token:"+token)
		}
		return nil, fmt.Errorf("get spec by share token: %w", err)
	}
	return sp, nil
}

// AdvancePhase moves a spec to the next phase, freezing phase_data for the
// completed phase and recording a checkpoint timestamp.
func (s *Store) AdvancePhase(ctx context.Context, id string, nextPhase spec.CurrentPhase, phaseData map[string]interface{}) error {
	update := s.db.Spec.UpdateOneID(id).
		SetCurrentPhase(nextPhase).
		SetLastCheckpointAt(time.Now()).
		ClearLastError()
	if phaseData != nil {
		update = update.SetPhaseData(phaseData)
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("spec", id)
		}
		return fmt.Errorf("advance spec phase: %w", err)
	}
	return nil
}

// RecordPhaseFailure stores the error from a failed phase attempt and bumps
// that phase's attempt counter, enforcing the phase-retry-limit invariant.
func (s *Store) RecordPhaseFailure(ctx context.Context, id, phase string, errMsg string) (int, error) {
	sp, err := s.db.Spec.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return 0, apperrors.NewNotFoundError("spec", id)
		}
		return 0, fmt.Errorf("get spec for phase failure: %w", err)
	}
	attempts := sp.PhaseAttempts
	if attempts == nil {
		attempts = map[string]int{}
	}
	attempts[phase]++
	if err := sp.Update().SetLastError(errMsg).SetPhaseAttempts(attempts).Exec(ctx); err != nil {
		return 0, fmt.Errorf("record phase failure: %w", err)
	}
	return attempts[phase], nil
}

// RecordSyncSummary persists a sandbox's final phase_data and transcript
// upload for the current phase (POST /sandbox/sync-summary, §6.1) without
// advancing current_phase — the evaluator still has to score the result
// before Machine.Advance commits the transition.
func (s *Store) RecordSyncSummary(ctx context.Context, id string, phase string, phaseData map[string]interface{}, transcriptB64 string) error {
	sp, err := s.db.Spec.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("spec", id)
		}
		return fmt.Errorf("get spec for sync summary: %w", err)
	}

	merged := sp.PhaseData
	if merged == nil {
		merged = map[string]interface{}{}
	}
	for k, v := range phaseData {
		merged[k] = v
	}

	update := sp.Update().SetPhaseData(merged).SetLastCheckpointAt(time.Now())
	if transcriptB64 != "" {
		transcripts := sp.SessionTranscripts
		if transcripts == nil {
			transcripts = map[string]string{}
		}
		transcripts[phase] = transcriptB64
		update = update.SetSessionTranscripts(transcripts)
	}
	if err := update.Exec(ctx); err != nil {
		return fmt.Errorf("record sync summary: %w", err)
	}
	return nil
}

// Archive soft-marks a spec as archived rather than deleting it outright.
func (s *Store) ArchiveSpec(ctx context.Context, id string) error {
	if err := s.db.Spec.UpdateOneID(id).SetArchived(true).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("spec", id)
		}
		return fmt.Errorf("archive spec: %w", err)
	}
	return nil
}

// ListArchivableSpecs returns completed specs older than the retention
// cutoff that have not yet been archived.
func (s *Store) ListArchivableSpecs(ctx context.Context, cutoff time.Time) ([]*ent.Spec, error) {
	specs, err := s.db.Spec.Query().
		Where(
			spec.CurrentPhaseEQ(spec.CurrentPhaseComplete),
			spec.ArchivedEQ(false),
			spec.UpdatedAtLT(cutoff),
		).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archivable specs: %w", err)
	}
	return specs, nil
}

// SearchSpecs runs a full-text search over title/description.
func (s *Store) SearchSpecs(ctx context.Context, query string, limit int) ([]*ent.Spec, error) {
	specs, err := s.db.Spec.Query().
		Where(spec.Or(
			spec.TitleContainsFold(query),
			spec.DescriptionContainsFold(query),
		)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("search specs: %w", err)
	}
	return specs, nil
}
