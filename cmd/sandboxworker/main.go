// Command sandboxworker is the process that runs inside a provisioned
// sandbox (C6): it reads its configuration from the environment, drives
// the coding agent through one task, and reports its lifecycle back to
// the orchestrator over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgekit/autoforge/pkg/codingagent"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/healthsvc"
	"github.com/forgekit/autoforge/pkg/sandboxworker"
)

func main() {
	cfg, err := sandboxworker.LoadConfigFromEnv(nil)
	if err != nil {
		slog.Error("load sandbox worker config", "error", err)
		os.Exit(1)
	}

	logger := slog.Default().With("component", "sandbox-worker", "sandbox_id", cfg.SandboxID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentClient := codingagent.New(&config.CodingAgentProviderConfig{
		Type:    config.LLMProviderTypeAnthropic,
		BaseURL: "http://127.0.0.1:4815",
		Model:   cfg.Model,
	}, cfg.APIKey)

	reporter := sandboxworker.MultiReporter{Reporters: []sandboxworker.Reporter{
		sandboxworker.NewHTTPReporter(cfg.CallbackURL),
	}}
	poller := sandboxworker.NewPoller(cfg.CallbackURL, cfg.SandboxID)
	beats := sandboxworker.NewHeartbeatEmitter(cfg.CallbackURL, cfg.SandboxID)

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go func() {
		healthServer := healthsvc.New("sandboxworker", nil)
		if err := healthServer.Serve(healthCtx, ":9090"); err != nil {
			logger.Warn("health probe server failed", "error", err)
		}
	}()

	runner := sandboxworker.NewRunner(cfg, agentClient, reporter, poller, beats)
	outcome := runner.Run(ctx)

	logger.Info("sandbox worker finished",
		"status", outcome.Status,
		"reason", outcome.Reason,
		"turns", outcome.Turns,
		"total_cost_usd", outcome.TotalCostUSD,
	)

	if outcome.Status != "completed" {
		os.Exit(1)
	}
}
