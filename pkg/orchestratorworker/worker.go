// Package orchestratorworker implements the Orchestrator Worker (C5): a
// pool of cooperative loops that drain the Task Scheduler, provision a
// sandbox for each claimed task, hand it to a Sandbox Worker, and forward
// the task's lifecycle back onto the Event Bus.
package orchestratorworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/eventbus"
	"github.com/forgekit/autoforge/pkg/sandboxprovider"
	"github.com/forgekit/autoforge/pkg/scheduler"
	"github.com/forgekit/autoforge/pkg/store"
)

// SandboxBundler uploads the worker bundle and task context to a freshly
// created sandbox and starts the Sandbox Worker process inside it with the
// callback URL, task id, and credentials it needs (§4.5 step 3-4).
type SandboxBundler interface {
	Bootstrap(ctx context.Context, sandboxID string, t Assignment) error
}

// Assignment is the scheduler assignment plus the resolved agent template,
// passed to the bundler so it has everything needed to start the worker.
type Assignment struct {
	scheduler.Assignment
	Template *config.AgentTemplateConfig
}

// ProviderResolver looks up the sandbox provider a named template spawns
// into. Kept as an interface (rather than a concrete registry type) so
// tests can substitute a fixed provider without building config registries.
type ProviderResolver interface {
	Resolve(template *config.AgentTemplateConfig) (sandboxprovider.Provider, error)
}

// Pool runs a fixed number of Worker loops draining the same Scheduler.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool builds a Pool of cfg.WorkerCount workers sharing one scheduler,
// store, provider resolver, and bundler.
func NewPool(st *store.Store, sched *scheduler.Scheduler, templates *config.AgentTemplateRegistry, providers ProviderResolver, bundler SandboxBundler, bus *eventbus.Bus, cfg *config.SchedulerConfig) *Pool {
	if cfg == nil {
		cfg = config.DefaultSchedulerConfig()
	}
	p := &Pool{}
	for i := 0; i < cfg.WorkerCount; i++ {
		p.workers = append(p.workers, newWorker(fmt.Sprintf("orch-%d", i), st, sched, templates, providers, bundler, bus, cfg))
	}
	return p
}

// Start launches every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(ctx)
		}(w)
	}
}

// Wait blocks until every worker's loop has returned (ctx canceled or Stop).
func (p *Pool) Wait() {
	p.wg.Wait()
}

// RestartSandbox satisfies guardian.SandboxRestarter: it deletes the
// agent's current sandbox and clears the task's sandbox/conversation
// binding so the scheduler re-admits it fresh on the next cycle, the
// orchestrator worker's half of the Guardian's restart_sandbox action.
func (p *Pool) RestartSandbox(ctx context.Context, agentID string) error {
	if len(p.workers) == 0 {
		return fmt.Errorf("no orchestrator workers configured")
	}
	return p.workers[0].restartAgentSandbox(ctx, agentID)
}

// Worker is a single drain loop: poll the scheduler, provision a sandbox,
// bootstrap the Sandbox Worker, record the binding, forward the task's
// lifecycle onto the bus. A poll-claim-execute shape, generalized from
// "execute an agent session inline" to "provision and hand off a
// sandboxed worker process".
type Worker struct {
	id        string
	store     *store.Store
	sched     *scheduler.Scheduler
	templates *config.AgentTemplateRegistry
	providers ProviderResolver
	bundler   SandboxBundler
	bus       *eventbus.Bus
	cfg       *config.SchedulerConfig
	logger    *slog.Logger

	// maxSandboxRetries overrides maxSandboxAcquireRetries when non-zero;
	// exposed for tests that need a fast-failing provider.
	maxSandboxRetries uint64
}

func newWorker(id string, st *store.Store, sched *scheduler.Scheduler, templates *config.AgentTemplateRegistry, providers ProviderResolver, bundler SandboxBundler, bus *eventbus.Bus, cfg *config.SchedulerConfig) *Worker {
	return &Worker{
		id: id, store: st, sched: sched, templates: templates,
		providers: providers, bundler: bundler, bus: bus, cfg: cfg,
		logger: slog.Default().With("component", "orchestrator-worker", "worker_id", id),
	}
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		assignment, err := w.sched.Next(ctx)
		if err != nil {
			if errors.Is(err, scheduler.ErrNoAssignment) {
				w.sleep(ctx, w.pollInterval())
				continue
			}
			w.logger.Error("scheduler drain failed", "error", err)
			w.sleep(ctx, time.Second)
			continue
		}

		if err := w.handleAssignment(ctx, assignment); err != nil {
			w.logger.Error("assignment handling failed", "task_id", assignment.Task.ID, "error", err)
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (w *Worker) pollInterval() time.Duration {
	jitter := time.Duration(0)
	if w.cfg.PollIntervalJitter > 0 {
		jitter = time.Duration(rand.Int64N(int64(w.cfg.PollIntervalJitter)))
	}
	return w.cfg.PollInterval + jitter
}

// handleAssignment provisions a sandbox for the claimed task and hands it
// off, retrying sandbox acquisition with exponential backoff + jitter up to
// a configured limit; repeated failure terminates the task (§4.5).
func (w *Worker) handleAssignment(ctx context.Context, assignment *scheduler.Assignment) error {
	t := assignment.Task
	a, err := w.store.GetAgent(ctx, assignment.AgentID)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", assignment.AgentID, err)
	}
	tmpl, err := w.templates.Get(a.AgentType)
	if err != nil {
		return fmt.Errorf("resolve template for agent type %q: %w", a.AgentType, err)
	}
	provider, err := w.providers.Resolve(tmpl)
	if err != nil {
		return fmt.Errorf("resolve sandbox provider %q: %w", tmpl.SandboxProvider, err)
	}

	sb, err := w.acquireSandbox(ctx, provider, tmpl, t.ID)
	if err != nil {
		return w.terminateUnavailable(ctx, t.ID, err)
	}

	if err := w.store.AssignSandbox(ctx, t.ID, sb.ID); err != nil {
		return fmt.Errorf("record sandbox assignment: %w", err)
	}
	w.publish("task.sandbox_assigned", "task", t.ID, map[string]interface{}{
		"sandbox_id": sb.ID, "agent_id": a.ID,
	})

	bootstrapCtx := withProvider(ctx, provider)
	if err := w.bundler.Bootstrap(bootstrapCtx, sb.ID, Assignment{Assignment: *assignment, Template: tmpl}); err != nil {
		return fmt.Errorf("bootstrap sandbox worker: %w", err)
	}

	w.publish("task.running", "task", t.ID, map[string]interface{}{
		"sandbox_id": sb.ID, "agent_id": a.ID,
	})
	return nil
}

// acquireSandbox retries CreateSandbox with exponential backoff + jitter up
// to MaxSandboxAcquireRetries attempts (§4.5: "retries sandbox acquisition
// up to a configured limit with exponential backoff + jitter").
func (w *Worker) acquireSandbox(ctx context.Context, provider sandboxprovider.Provider, tmpl *config.AgentTemplateConfig, taskID string) (*sandboxprovider.Sandbox, error) {
	resources := sandboxprovider.Resources{}
	var sb *sandboxprovider.Sandbox

	retries := uint64(maxSandboxAcquireRetries)
	if w.maxSandboxRetries > 0 {
		retries = w.maxSandboxRetries
	}
	backoffPolicy := backoff.NewExponentialBackOff()
	policy := backoff.WithContext(backoff.WithMaxRetries(backoffPolicy, retries), ctx)
	err := backoff.Retry(func() error {
		created, err := provider.CreateSandbox(ctx, tmpl.Image, resources, map[string]string{"task_id": taskID})
		if err != nil {
			w.logger.Warn("sandbox acquisition attempt failed", "task_id", taskID, "error", err)
			return err
		}
		sb = created
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("acquire sandbox after retries: %w", err)
	}
	return sb, nil
}

// maxSandboxAcquireRetries bounds how many times acquireSandbox retries
// CreateSandbox before the task is terminated as sandbox_unavailable.
const maxSandboxAcquireRetries = 5

func (w *Worker) terminateUnavailable(ctx context.Context, taskID string, cause error) error {
	reason := "sandbox_unavailable"
	if _, err := w.store.UpdateTaskStatusCAS(ctx, taskID, currentVersionUnknown, task.StatusFailed, &reason); err != nil {
		// The CAS likely failed because another writer already moved the
		// task; reload and try once more against its current version.
		current, getErr := w.store.GetTask(ctx, taskID)
		if getErr == nil {
			_, _ = w.store.UpdateTaskStatusCAS(ctx, taskID, current.Version, task.StatusFailed, &reason)
		}
	}
	w.publish("task.failed", "task", taskID, map[string]interface{}{"reason": reason})
	return fmt.Errorf("sandbox unavailable for task %s: %w", taskID, cause)
}

// currentVersionUnknown is passed to the first CAS attempt in
// terminateUnavailable; callers don't track a task's version once it has
// left the scheduler, so the first attempt is expected to miss and fall
// through to the reload-and-retry path.
const currentVersionUnknown = -1

func (w *Worker) restartAgentSandbox(ctx context.Context, agentID string) error {
	a, err := w.store.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent for restart: %w", err)
	}
	tmpl, err := w.templates.Get(a.AgentType)
	if err != nil {
		return fmt.Errorf("resolve template for restart: %w", err)
	}
	provider, err := w.providers.Resolve(tmpl)
	if err != nil {
		return fmt.Errorf("resolve provider for restart: %w", err)
	}

	if a.Status != agent.StatusRUNNING && a.Status != agent.StatusDEGRADED {
		return fmt.Errorf("agent %s is not in a restartable state (%s)", agentID, a.Status)
	}

	running, err := w.store.ListRunningTasksForScope(ctx, budget.ScopeTypeAgent, agentID)
	if err != nil {
		return fmt.Errorf("list running tasks for agent %s: %w", agentID, err)
	}
	for _, t := range running {
		if t.SandboxID == nil {
			continue
		}
		if err := provider.Delete(ctx, *t.SandboxID); err != nil {
			return fmt.Errorf("delete sandbox %s for task %s: %w", *t.SandboxID, t.ID, err)
		}
		if _, err := w.store.IncrementRetry(ctx, t.ID); err != nil {
			return fmt.Errorf("reset task %s after sandbox restart: %w", t.ID, err)
		}
		w.publish("task.sandbox_restarted", "task", t.ID, map[string]interface{}{"agent_id": agentID})
	}

	if err := w.store.TransitionAgentStatus(ctx, agentID, agent.StatusSPAWNING); err != nil {
		return fmt.Errorf("transition agent to spawning after restart: %w", err)
	}
	w.publish("agent.sandbox_restarted", "agent", agentID, nil)
	return nil
}

func (w *Worker) publish(eventType, entityType, entityID string, payload map[string]interface{}) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(eventbus.Envelope{
		EventType: eventType, EntityType: entityType, EntityID: entityID, Payload: payload, At: time.Now(),
	}); err != nil {
		w.logger.Warn("publish failed", "event_type", eventType, "entity_id", entityID, "error", err)
	}
}
