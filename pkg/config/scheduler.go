package config

import "time"

// SchedulerConfig controls the Task Scheduler and Orchestrator Worker pool
// (C4/C5): how many tasks can run concurrently and how the priority queue is
// scored.
type SchedulerConfig struct {
	// WorkerCount is the number of Orchestrator Worker goroutines per replica.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentSandboxes is the global ceiling on live sandboxes across
	// all replicas, enforced via the Entity Store.
	MaxConcurrentSandboxes int `yaml:"max_concurrent_sandboxes"`

	// PollInterval is the base interval for re-scanning the ready queue.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is random jitter added to PollInterval to avoid
	// thundering-herd polling across replicas.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// TaskTimeout is the maximum time a task may run before being marked
	// failed and retried (subject to max_retries).
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout bounds how long a worker waits for in-flight
	// tasks to settle during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// Weights are the priority-score coefficients (see ScoreWeights).
	Weights ScoreWeights `yaml:"weights"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		WorkerCount:             5,
		MaxConcurrentSandboxes:  10,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      250 * time.Millisecond,
		TaskTimeout:             2 * time.Hour,
		GracefulShutdownTimeout: 2 * time.Minute,
		Weights:                 DefaultScoreWeights(),
	}
}
