package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/driftwatch/agent"
	"github.com/c360studio/driftwatch/agentic"
	"github.com/c360studio/driftwatch/config"
	"github.com/c360studio/driftwatch/engine"
	"github.com/c360studio/driftwatch/evaluator"
	"github.com/c360studio/driftwatch/gateway"
	"github.com/c360studio/driftwatch/llm"
	"github.com/c360studio/driftwatch/publisher"
	"github.com/c360studio/driftwatch/schedule"
	"github.com/c360studio/driftwatch/toolbelt"
)

// App wires together all components for one driftwatch process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Remote tool session, nil when publishing is disabled
	gateway *gateway.Gateway

	engine  *engine.Engine
	trigger *schedule.Trigger
	watcher *schedule.Watcher

	metricsServer *http.Server
}

// NewApp creates a new application instance. Components that need a live
// NATS connection are wired in Start.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	checkpoints, err := engine.NewKVCheckpointStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize checkpoint store: %w", err)
	}

	client, err := a.buildLLMClient(ctx)
	if err != nil {
		return err
	}

	// Tool call recording is optional; a run works without it.
	toolCalls, err := agentic.NewToolCallStore(ctx, a.js, a.logger)
	if err != nil {
		a.logger.Warn("Failed to initialize tool call store", "error", err)
		toolCalls = nil
	}

	// Evaluation agent: model plus the local verification toolbelt.
	tools := toolbelt.NewTools(toolbelt.WithLogger(a.logger))
	evalExec := agentic.NewRecordingExecutor(toolbelt.NewExecutor(tools), toolCalls, a.logger)
	evalLoop := agent.New(client, evalExec,
		agent.WithLogger(a.logger))
	eval := evaluator.New(evalLoop, evaluator.WithLogger(a.logger))

	engineOpts := []engine.EngineOption{
		engine.WithCheckpoints(checkpoints),
		engine.WithMetrics(metrics),
		engine.WithLogger(a.logger),
	}

	// Publishing agent: model plus the remote repository tools. Without a
	// gateway endpoint, runs evaluate only.
	if a.cfg.PublishingEnabled() {
		a.gateway = gateway.New(a.cfg.Gateway.Endpoint, a.cfg.GatewayToken(),
			gateway.WithLogger(a.logger))

		pubExec := agentic.NewRecordingExecutor(a.gateway, toolCalls, a.logger)
		pubLoop := agent.New(client, pubExec,
			agent.WithLogger(a.logger))
		pub := publisher.New(pubLoop, a.cfg.Docs.Dir,
			publisher.WithLogger(a.logger))

		engineOpts = append(engineOpts, engine.WithPublisher(pub))
	} else if a.cfg.Gateway.Endpoint == "" {
		a.logger.Warn("No gateway endpoint configured, publishing disabled")
	} else {
		a.logger.Warn("Gateway credential missing, publishing disabled",
			"token_env", a.cfg.Gateway.TokenEnv)
	}

	a.engine = engine.New(eval, engineOpts...)

	a.trigger = schedule.NewTrigger(a.engine, a.cfg.Docs.Dir,
		schedule.WithCronSpec(a.cfg.Schedule.Cron),
		schedule.WithConcurrency(a.cfg.Run.MaxConcurrentEvaluations),
		schedule.WithTokenBudgetHint(a.cfg.Run.TokenBudgetHint),
		schedule.WithTriggerLogger(a.logger))

	if a.cfg.Metrics.Addr != "" {
		a.startMetricsServer(reg)
	}

	a.logger.Info("Components initialized",
		"docs_dir", a.cfg.Docs.Dir,
		"publishing", a.cfg.PublishingEnabled())

	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) buildLLMClient(ctx context.Context) (*llm.Client, error) {
	endpoints := make([]llm.EndpointConfig, 0, len(a.cfg.Model.Endpoints))
	for _, ep := range a.cfg.Model.Endpoints {
		endpoints = append(endpoints, llm.EndpointConfig{
			Provider:  ep.Provider,
			URL:       ep.URL,
			Model:     ep.Model,
			MaxTokens: ep.MaxTokens,
		})
	}

	opts := []llm.ClientOption{
		llm.WithLogger(a.logger),
		llm.WithHTTPClient(&http.Client{Timeout: a.cfg.Model.Timeout}),
	}

	// Call recording is optional; a run works without it.
	if store, err := llm.NewCallStore(ctx, a.js, a.logger); err != nil {
		a.logger.Warn("Failed to initialize LLM call store", "error", err)
	} else {
		opts = append(opts, llm.WithCallStore(store))
	}

	return llm.NewClient(endpoints, opts...), nil
}

func (a *App) startMetricsServer(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	a.metricsServer = &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		a.logger.Info("Metrics server listening", "addr", a.cfg.Metrics.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// RunOnce drives a single audit run.
func (a *App) RunOnce(ctx context.Context) error {
	// Connect failures here are run-fatal; no verdict should be burned on
	// a run that cannot publish.
	if a.gateway != nil {
		if err := a.gateway.Connect(ctx); err != nil {
			return err
		}
	}

	verdicts, result, err := a.trigger.RunOnce(ctx)
	if err != nil {
		return err
	}

	updates := 0
	failed := 0
	for _, v := range verdicts {
		if v.Failed {
			failed++
		} else if v.NeedsUpdate {
			updates++
		}
	}

	a.logger.Info("Audit run complete",
		"documents", len(verdicts),
		"updates", updates,
		"failed", failed)
	if result != nil {
		a.logger.Info("Published pull request", "url", result.PRURL)
	}

	return nil
}

// Serve runs the audit schedule until the context is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Docs.Watch {
		a.watcher = schedule.NewWatcher(a.cfg.Docs.Dir, a.logger)
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("Corpus watcher unavailable", "error", err)
			a.watcher = nil
		}
	}

	if err := a.trigger.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	a.trigger.Stop()
	if a.watcher != nil {
		if changed := a.watcher.DrainChanged(); len(changed) > 0 {
			a.logger.Info("Documents changed on disk since last run", "topics", changed)
		}
		a.watcher.Close()
	}

	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.metricsServer.Shutdown(shutdownCtx)
		cancel()
	}

	if a.gateway != nil {
		a.gateway.Close()
	}

	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Shutdown complete")
}
