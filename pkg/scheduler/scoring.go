package scheduler

import (
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/pkg/config"
)

// deadlineHorizon normalizes deadline_urgency: a task due exactly one week
// out scores 0 urgency, climbing to 1 as the deadline arrives or passes.
const deadlineHorizon = 7 * 24 * time.Hour

// Score computes the priority-queue ordering key's scalar component:
//
//	score = w1*priority_base + w2*age_hours + w3*deadline_urgency
//	        + w4*downstream_blocked_count - w5*retry_count
func Score(t *ent.Task, downstreamBlocked int, weights config.ScoreWeights, now time.Time) float64 {
	ageHours := now.Sub(t.CreatedAt).Hours()
	urgency := deadlineUrgency(t.Deadline, now)
	return weights.PriorityBase*t.PriorityBase +
		weights.AgeHours*ageHours +
		weights.DeadlineUrgency*urgency +
		weights.DownstreamBlocked*float64(downstreamBlocked) -
		weights.RetryCount*float64(t.RetryCount)
}

// deadlineUrgency = max(0, 1 - (deadline-now)/horizon); tasks with no
// deadline contribute zero urgency.
func deadlineUrgency(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	remaining := deadline.Sub(now).Seconds()
	horizon := deadlineHorizon.Seconds()
	u := 1 - remaining/horizon
	if u < 0 {
		return 0
	}
	return u
}
