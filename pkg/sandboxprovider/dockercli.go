package sandboxprovider

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/pkg/config"
)

// DockerCLIProvider provisions sandboxes as local Docker containers by
// shelling out to the docker binary, the same stdio-transport posture the
// MCP client uses for its subprocess servers: a fixed command plus
// per-invocation args, inheriting the parent environment.
type DockerCLIProvider struct {
	command string
	baseEnv []string

	mu        sync.Mutex
	resources map[string]Resources
}

// NewDockerCLIProvider builds a DockerCLIProvider. cfg.Type must be
// TransportTypeStdio; cfg.Command defaults to "docker" if unset.
func NewDockerCLIProvider(cfg config.TransportConfig) *DockerCLIProvider {
	command := cfg.Command
	if command == "" {
		command = "docker"
	}
	return &DockerCLIProvider{command: command, baseEnv: os.Environ(), resources: make(map[string]Resources)}
}

func (p *DockerCLIProvider) CreateSandbox(ctx context.Context, image string, resources Resources, labels map[string]string) (*Sandbox, error) {
	id := "sbx-" + uuid.New().String()
	args := []string{"run", "-d", "--name", id}
	if resources.CPU > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%.2f", resources.CPU))
	}
	if resources.MemoryBytes > 0 {
		args = append(args, "--memory", fmt.Sprintf("%d", resources.MemoryBytes))
	}
	for k, v := range labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, image, "sleep", "infinity")

	if _, err := p.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("docker run: %w", err)
	}

	p.mu.Lock()
	p.resources[id] = resources
	p.mu.Unlock()

	return &Sandbox{ID: id, Resources: resources, Labels: labels}, nil
}

func (p *DockerCLIProvider) UploadFiles(ctx context.Context, sandboxID string, files map[string][]byte) error {
	for path, content := range files {
		cmd := exec.CommandContext(ctx, p.command, "exec", "-i", sandboxID, "sh", "-c", fmt.Sprintf("mkdir -p $(dirname %q) && cat > %q", path, path))
		cmd.Env = p.baseEnv
		cmd.Stdin = bytes.NewReader(content)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("upload %s to %s: %w: %s", path, sandboxID, err, stderr.String())
		}
	}
	return nil
}

func (p *DockerCLIProvider) Exec(ctx context.Context, sandboxID, command string, env map[string]string) (ExecResult, error) {
	args := []string{"exec"}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, sandboxID, "sh", "-c", command)

	out, err := p.run(ctx, args...)
	result := ExecResult{Stdout: out}
	if err != nil {
		result.ExitCode = 1
		result.Stderr = err.Error()
		return result, nil
	}
	return result, nil
}

// Delete stops and removes the container. Docker's own "no such container"
// error is swallowed so repeated deletes of an already-removed sandbox are
// not treated as failures (§6.2's idempotent-delete requirement).
func (p *DockerCLIProvider) Delete(ctx context.Context, sandboxID string) error {
	_, err := p.run(ctx, "rm", "-f", sandboxID)
	if err != nil && !strings.Contains(err.Error(), "No such container") {
		return fmt.Errorf("docker rm %s: %w", sandboxID, err)
	}
	p.mu.Lock()
	delete(p.resources, sandboxID)
	p.mu.Unlock()
	return nil
}

// GetPreviewLink is unsupported for the local docker provider: there is no
// ingress fronting container ports by default. Callers must use an HTTP
// sandbox provider for preview links.
func (p *DockerCLIProvider) GetPreviewLink(ctx context.Context, sandboxID string, port int) (PreviewLink, error) {
	return PreviewLink{}, fmt.Errorf("preview links not supported by the local docker provider")
}

func (p *DockerCLIProvider) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Env = p.baseEnv
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
