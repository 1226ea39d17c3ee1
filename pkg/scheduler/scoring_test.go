package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/pkg/config"
)

func TestScore_HigherPriorityBaseScoresHigher(t *testing.T) {
	now := time.Now()
	weights := config.DefaultScoreWeights()
	low := &ent.Task{PriorityBase: 1, CreatedAt: now}
	high := &ent.Task{PriorityBase: 5, CreatedAt: now}
	assert.Greater(t, Score(high, 0, weights, now), Score(low, 0, weights, now))
}

func TestScore_RetryCountLowersScore(t *testing.T) {
	now := time.Now()
	weights := config.DefaultScoreWeights()
	fresh := &ent.Task{PriorityBase: 1, CreatedAt: now, RetryCount: 0}
	retried := &ent.Task{PriorityBase: 1, CreatedAt: now, RetryCount: 3}
	assert.Greater(t, Score(fresh, 0, weights, now), Score(retried, 0, weights, now))
}

func TestDeadlineUrgency_NoDeadlineIsZero(t *testing.T) {
	assert.Equal(t, 0.0, deadlineUrgency(nil, time.Now()))
}

func TestDeadlineUrgency_PastDeadlineClampsToOne(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	u := deadlineUrgency(&past, now)
	assert.InDelta(t, 1.0, u+((-past.Sub(now).Hours())/(7*24)), 0.5)
	assert.GreaterOrEqual(t, u, 1.0)
}

func TestDeadlineUrgency_FarDeadlineIsLow(t *testing.T) {
	now := time.Now()
	far := now.Add(30 * 24 * time.Hour)
	u := deadlineUrgency(&far, now)
	assert.Equal(t, 0.0, u)
}

func TestScore_DownstreamBlockedIncreasesScore(t *testing.T) {
	now := time.Now()
	weights := config.DefaultScoreWeights()
	task := &ent.Task{PriorityBase: 1, CreatedAt: now}
	assert.Greater(t, Score(task, 5, weights, now), Score(task, 0, weights, now))
}
