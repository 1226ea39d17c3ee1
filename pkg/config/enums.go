package config

// TransportType defines how the orchestrator talks to an external sandbox
// provisioner or coding-agent process.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses HTTP/HTTPS request-response.
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events for streaming.
	TransportTypeSSE TransportType = "sse"
)

// IsValid reports whether the transport type is one of the supported kinds.
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// AuthorityLevel orders the Guardian/Watchdog intervention ladder from
// least to most disruptive.
type AuthorityLevel int

const (
	AuthorityNudge           AuthorityLevel = 0
	AuthorityPauseAgent      AuthorityLevel = 1
	AuthorityResizeResources AuthorityLevel = 2
	AuthorityRestartSandbox  AuthorityLevel = 3
	AuthorityTerminateAgent  AuthorityLevel = 4
)

// IsValid reports whether the authority level is within the known ladder.
func (a AuthorityLevel) IsValid() bool {
	return a >= AuthorityNudge && a <= AuthorityTerminateAgent
}

// String renders the authority level using its canonical action name.
func (a AuthorityLevel) String() string {
	switch a {
	case AuthorityNudge:
		return "nudge"
	case AuthorityPauseAgent:
		return "pause_agent"
	case AuthorityResizeResources:
		return "resize_resources"
	case AuthorityRestartSandbox:
		return "restart_sandbox"
	case AuthorityTerminateAgent:
		return "terminate_agent"
	default:
		return "unknown"
	}
}
