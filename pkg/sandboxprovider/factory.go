package sandboxprovider

import (
	"fmt"

	"github.com/forgekit/autoforge/pkg/config"
)

// New builds a Provider from a sandbox provider's transport config, the
// same dispatch-by-type shape the MCP client uses to pick a transport.
func New(cfg config.SandboxProviderConfig) (Provider, error) {
	switch cfg.Transport.Type {
	case config.TransportTypeStdio:
		return NewDockerCLIProvider(cfg.Transport), nil
	case config.TransportTypeHTTP:
		return NewHTTPProvider(cfg.Transport)
	default:
		return nil, fmt.Errorf("unsupported sandbox provider transport: %s", cfg.Transport.Type)
	}
}
