// Command orchestratord is the orchestrator server process: it owns the
// Entity Store connection and runs every orchestrator-side component (the
// Event Bus, Heartbeat & Anomaly Engine, Task Scheduler, Orchestrator
// Worker pool, Guardian, Merge Coordinator, Cost Accountant, and the Spec
// Phase State Machine) behind the §6.1 HTTP surface the Sandbox Worker
// runtime calls back into.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/forgekit/autoforge/pkg/cleanup"
	"github.com/forgekit/autoforge/pkg/codingagent"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/cost"
	"github.com/forgekit/autoforge/pkg/database"
	"github.com/forgekit/autoforge/pkg/eventbus"
	"github.com/forgekit/autoforge/pkg/guardian"
	"github.com/forgekit/autoforge/pkg/healthsvc"
	"github.com/forgekit/autoforge/pkg/heartbeat"
	"github.com/forgekit/autoforge/pkg/masking"
	"github.com/forgekit/autoforge/pkg/merge"
	"github.com/forgekit/autoforge/pkg/orchestratorapi"
	"github.com/forgekit/autoforge/pkg/orchestratorworker"
	"github.com/forgekit/autoforge/pkg/scheduler"
	"github.com/forgekit/autoforge/pkg/slack"
	"github.com/forgekit/autoforge/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("initialize configuration", "error", err)
		os.Exit(1)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("close database client", "error", err)
		}
	}()
	slog.Info("connected to database")

	st := store.New(dbClient)

	var slackSvc *slack.Service
	if cfg.Slack != nil && cfg.Slack.Enabled {
		slackSvc = slack.NewService(cfg.Slack, os.Getenv(cfg.Slack.TokenEnv))
	}

	bus := eventbus.New(eventbus.NewSandboxEventSink(st, "orchestrator"))
	go bus.Run(ctx)

	hbEngine := heartbeat.New(st, cfg.Heartbeat)
	go hbEngine.RunOrphanSweep(ctx)

	sched := scheduler.New(st, cfg.Scheduler.Weights)

	providerRegistry := orchestratorworker.NewRegistry(cfg.SandboxProviderRegistry)
	bundler := &orchestratorworker.ExecBundler{
		WorkerBinaryPath: getEnv("SANDBOX_WORKER_BINARY", "/opt/forgekit/bin/sandboxworker"),
		CallbackBaseURL:  cfg.API.CallbackBaseURL,
	}
	pool := orchestratorworker.NewPool(st, sched, cfg.AgentTemplateRegistry, providerRegistry, bundler, bus, cfg.Scheduler)
	pool.Start(ctx)
	defer pool.Wait()

	masker := masking.NewService(cfg.AlertMasking)

	guardianSvc := guardian.New(st, cfg.Guardian, slackSvc, pool, masker)
	go runGuardianSweeps(ctx, guardianSvc)

	accountant := cost.New(st, slackSvc, guardianSvc)
	_ = accountant // wired for future use by the Orchestrator Worker's cost-recording path

	defaultAgentProvider, err := cfg.CodingAgentProviderRegistry.Get("default")
	if err != nil {
		slog.Warn("no default coding-agent provider configured, merge conflict resolution disabled", "error", err)
	}
	var resolver merge.Resolver
	if defaultAgentProvider != nil {
		client := codingagent.New(defaultAgentProvider, os.Getenv(defaultAgentProvider.APIKeyEnv))
		resolver = merge.NewAgentResolver(client, defaultAgentProvider.Model)
	}
	changesets := merge.NewWorkspaceChangesetSource(st, cfg.Merge.WorkspaceRoot)
	mergeCoordinator := merge.New(st, changesets, resolver, cfg.Merge)
	go mergeCoordinator.Run(ctx, bus)

	cleanupSvc := cleanup.NewService(cfg.Retention, st)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	apiServer := orchestratorapi.NewServer(st, bus, hbEngine, masker)

	healthServer := healthsvc.New("orchestratord", func(checkCtx context.Context) error {
		_, err := database.Health(checkCtx, dbClient.DB())
		return err
	})
	go func() {
		if err := healthServer.Serve(ctx, ":"+getEnv("HEALTH_GRPC_PORT", "9090")); err != nil {
			slog.Error("health probe server failed", "error", err)
		}
	}()

	go func() {
		slog.Info("orchestrator HTTP server listening", "port", httpPort)
		if err := apiServer.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			slog.Error("orchestrator HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down orchestrator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful HTTP shutdown failed", "error", err)
	}
}

// runGuardianSweeps periodically processes proposed Guardian actions and
// sweeps for approval timeouts — the Guardian package exposes both
// operations but owns no ticker loop of its own, following the same
// shape as pkg/cleanup.Service's own runAll ticker.
func runGuardianSweeps(ctx context.Context, g *guardian.Guardian) {
	const interval = 30 * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.ProcessProposed(ctx); err != nil {
				slog.Error("guardian process proposed actions", "error", err)
			}
			if err := g.SweepTimeouts(ctx); err != nil {
				slog.Error("guardian sweep timeouts", "error", err)
			}
		}
	}
}
