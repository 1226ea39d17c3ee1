package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/costrecord"
)

// CostRecordInput captures one LLM call's billed usage, as computed by the
// cost accountant from a provider's token usage response.
type CostRecordInput struct {
	ID                string
	TaskID            string
	AgentID           *string
	Provider          string
	Model             string
	PromptTokens      int
	CompletionTokens  int
	PromptCostUSD     float64
	CompletionCostUSD float64
	SandboxID         *string
	BillingAccountID  *string
}

// RecordCost appends an immutable cost record.
func (s *Store) RecordCost(ctx context.Context, in CostRecordInput) (*ent.CostRecord, error) {
	create := s.db.CostRecord.Create().
		SetID(in.ID).
		SetTaskID(in.TaskID).
		SetProvider(in.Provider).
		SetModel(in.Model).
		SetPromptTokens(in.PromptTokens).
		SetCompletionTokens(in.CompletionTokens).
		SetPromptCostUSD(in.PromptCostUSD).
		SetCompletionCostUSD(in.CompletionCostUSD).
		SetTotalCostUSD(in.PromptCostUSD + in.CompletionCostUSD)
	if in.AgentID != nil {
		create = create.SetAgentID(*in.AgentID)
	}
	if in.SandboxID != nil {
		create = create.SetSandboxID(*in.SandboxID)
	}
	if in.BillingAccountID != nil {
		create = create.SetBillingAccountID(*in.BillingAccountID)
	}

	rec, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("record cost: %w", err)
	}
	return rec, nil
}

// SumCostByTask totals the cost of all records attached to a task, used to
// enforce Budget.MaxCostUSDPerAttempt-style per-task caps.
func (s *Store) SumCostByTask(ctx context.Context, taskID string) (float64, error) {
	var out []struct {
		Sum float64 `json:"sum"`
	}
	err := s.db.CostRecord.Query().
		Where(costrecord.TaskIDEQ(taskID)).
		Aggregate(ent.Sum(costrecord.FieldTotalCostUSD)).
		Scan(ctx, &out)
	if err != nil {
		return 0, fmt.Errorf("sum cost by task: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Sum, nil
}

// SumCostByBillingAccount totals cost for an account within a time window,
// the Cost Accountant's input for scope-level budget enforcement.
func (s *Store) SumCostByBillingAccount(ctx context.Context, accountID string, since time.Time) (float64, error) {
	var out []struct {
		Sum float64 `json:"sum"`
	}
	err := s.db.CostRecord.Query().
		Where(costrecord.BillingAccountIDEQ(accountID), costrecord.TimestampGTE(since)).
		Aggregate(ent.Sum(costrecord.FieldTotalCostUSD)).
		Scan(ctx, &out)
	if err != nil {
		return 0, fmt.Errorf("sum cost by billing account: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Sum, nil
}

// DeleteCostRecordsOlderThan purges cost records past the retention cutoff.
// Cost records are kept far longer than other audit entities since they
// back billing reconciliation.
func (s *Store) DeleteCostRecordsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.db.CostRecord.Delete().
		Where(costrecord.TimestampLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete old cost records: %w", err)
	}
	return n, nil
}
