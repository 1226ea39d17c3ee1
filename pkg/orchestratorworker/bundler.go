package orchestratorworker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/forgekit/autoforge/pkg/sandboxprovider"
)

// ExecBundler is the default SandboxBundler: it uploads the sandbox worker
// binary plus a JSON task-context file, then execs the binary with the
// environment variables it needs to start driving the coding agent
// (§4.5 step 3-4). Pushes a small self-contained payload into a freshly
// started process rather than mounting a shared filesystem.
type ExecBundler struct {
	// WorkerBinaryPath is the local path to the compiled sandboxworker
	// binary, read once and uploaded into every sandbox.
	WorkerBinaryPath string
	// CallbackBaseURL is injected as CALLBACK_URL so the sandboxed worker
	// can reach the orchestrator's §6.1 HTTP surface.
	CallbackBaseURL string
	// RemotePath is where the binary is written inside the sandbox.
	RemotePath string
}

const defaultRemoteWorkerPath = "/opt/forgekit/sandboxworker"

// taskContext is the JSON payload written alongside the worker binary,
// giving the sandboxed process everything it needs without further RPCs
// before its first heartbeat.
type taskContext struct {
	TaskID               string                 `json:"task_id"`
	TicketID             string                 `json:"ticket_id"`
	AgentID              string                 `json:"agent_id"`
	CodingAgentProvider  string                 `json:"coding_agent_provider"`
	RequiredCapabilities []string               `json:"required_capabilities,omitempty"`
	ExecutionConfig      map[string]interface{} `json:"execution_config,omitempty"`
}

// Bootstrap implements SandboxBundler.
func (b *ExecBundler) Bootstrap(ctx context.Context, sandboxID string, a Assignment) error {
	remotePath := b.RemotePath
	if remotePath == "" {
		remotePath = defaultRemoteWorkerPath
	}

	provider, err := providerFromContext(ctx)
	if err != nil {
		return err
	}

	binary, err := os.ReadFile(b.WorkerBinaryPath)
	if err != nil {
		return fmt.Errorf("read worker binary %s: %w", b.WorkerBinaryPath, err)
	}

	tc := taskContext{
		TaskID:               a.Task.ID,
		TicketID:             a.Task.TicketID,
		AgentID:              a.AgentID,
		CodingAgentProvider:  a.Template.CodingAgentProvider,
		RequiredCapabilities: a.Task.RequiredCapabilities,
		ExecutionConfig:      a.Task.ExecutionConfig,
	}
	ctxJSON, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("marshal task context: %w", err)
	}

	files := map[string][]byte{
		remotePath:               binary,
		remotePath + ".task.json": ctxJSON,
	}
	if err := provider.UploadFiles(ctx, sandboxID, files); err != nil {
		return fmt.Errorf("upload worker bundle: %w", err)
	}

	env := map[string]string{
		"CALLBACK_URL":      b.CallbackBaseURL,
		"TASK_ID":           a.Task.ID,
		"SANDBOX_ID":        sandboxID,
		"AGENT_ID":          a.AgentID,
		"TASK_CONTEXT_PATH": remotePath + ".task.json",
	}
	result, err := provider.Exec(ctx, sandboxID, "chmod +x "+remotePath+" && nohup "+remotePath+" --daemon > /tmp/sandboxworker.log 2>&1 &", env)
	if err != nil {
		return fmt.Errorf("start sandbox worker: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("sandbox worker start command exited %d: %s", result.ExitCode, result.Stderr)
	}
	return nil
}

type providerCtxKey struct{}

// withProvider attaches the sandboxprovider.Provider a bootstrap call should
// use; the orchestrator worker sets this before invoking Bootstrap so the
// bundler doesn't need its own copy of the provider resolver.
func withProvider(ctx context.Context, p sandboxprovider.Provider) context.Context {
	return context.WithValue(ctx, providerCtxKey{}, p)
}

func providerFromContext(ctx context.Context) (sandboxprovider.Provider, error) {
	p, ok := ctx.Value(providerCtxKey{}).(sandboxprovider.Provider)
	if !ok || p == nil {
		return nil, fmt.Errorf("no sandbox provider attached to context")
	}
	return p, nil
}
