package config

// SCMConfig holds resolved source-control integration configuration used by
// the Merge Coordinator (C9) to open PRs and push resolved branches.
type SCMConfig struct {
	TokenEnv string // Env var name containing the SCM PAT (default: "GITHUB_TOKEN")
	BaseURL  string // Empty means the public github.com API
}

// SlackConfig holds Slack notification settings used to surface Guardian
// approval requests (C8) and budget-alert events (C10) to a human channel.
type SlackConfig struct {
	Enabled      bool
	TokenEnv     string
	Channel      string
	DashboardURL string // Base URL for linking back to the orchestrator dashboard, may be empty
}

// OrchestratorAPIConfig holds settings for the HTTP surface the Sandbox
// Worker runtime (C6) calls back into (§6.1): event submission, message
// polling, heartbeats, and conversation registration.
type OrchestratorAPIConfig struct {
	// CallbackBaseURL is the base URL a freshly bootstrapped sandbox worker
	// uses to reach this orchestrator, injected into every sandbox as the
	// CALLBACK_URL environment variable.
	CallbackBaseURL string
}
