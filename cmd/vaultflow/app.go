package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/emarren/vaultflow/internal/engine"
	"github.com/emarren/vaultflow/internal/expressions"
	"github.com/emarren/vaultflow/internal/handlers"
	"github.com/emarren/vaultflow/internal/history"
	"github.com/emarren/vaultflow/internal/logging"
	"github.com/emarren/vaultflow/internal/providers"
	"github.com/emarren/vaultflow/internal/trigger"
	"github.com/emarren/vaultflow/internal/validation"
	"github.com/emarren/vaultflow/pkg/schema"
)

// app assembles the engine and its collaborators for CLI use.
type app struct {
	cfg       Config
	logger    *slog.Logger
	recorder  history.Recorder
	store     providers.DocumentStore
	loader    *providers.DocStoreLoader
	scheduler *engine.Scheduler
	tools     providers.ToolGateway
	filters   *expressions.CELEngine
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	logger := newLogger(cfg.LogLevel)

	var recorder history.Recorder
	if cfg.DBPath == "" {
		recorder = history.NewMemoryRecorder()
	} else {
		if err := os.MkdirAll(vaultflowDir(), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		r, err := history.NewLibSQLRecorder(ctx, "file:"+cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open history db: %w", err)
		}
		recorder = r
	}

	prompter := newTerminalPrompter(os.Stdin, os.Stdout)
	store := providers.NewFSDocumentStore(cfg.VaultDir).WithConfirmer(prompter.confirm)
	loader := providers.NewDocStoreLoader(store)
	tools := providers.NewMCPGateway("vaultflow", version)

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	templates := expressions.NewTemplateEngine()

	registry := engine.NewRegistry()
	scheduler := engine.NewScheduler(registry, recorder, logger, engine.SchedulerConfig{
		MaxSteps: cfg.MaxSteps,
	})
	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	scheduler.SetValidator(validator)

	invoker := engine.NewInvoker(loader, scheduler, 0)
	handlers.Register(registry, handlers.Deps{
		Collab: providers.Collaborators{
			Store:    store,
			HTTP:     providers.NewNetGateway(providers.NetGatewayConfig{}),
			Tools:    tools,
			Prompter: prompter,
		},
		Expr:       expressions.NewExprEngine(),
		JQ:         expressions.NewGoJQEngine(),
		Conditions: expressions.NewConditionEvaluator(templates),
		Invoker:    invoker,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		recorder:  recorder,
		store:     store,
		loader:    loader,
		scheduler: scheduler,
		tools:     tools,
		filters:   cel,
	}, nil
}

func (a *app) Close() {
	if err := a.tools.Close(); err != nil {
		a.logger.Warn("close tool gateway", slog.String("error", err.Error()))
	}
	if err := a.recorder.Close(); err != nil {
		a.logger.Warn("close history recorder", slog.String("error", err.Error()))
	}
}

// RunWorkflow loads a workflow by name and executes it. Satisfies
// trigger.Runner.
func (a *app) RunWorkflow(ctx context.Context, name string, vars map[string]any) error {
	mode := schema.TriggerModePanel
	if _, fromEvent := vars[schema.VarEventType]; fromEvent {
		mode = schema.TriggerModeEvent
	}
	return a.runWorkflow(ctx, name, mode, vars)
}

// RunHotkey executes a workflow as a hotkey invocation, seeding the active
// document context the host editor reported. Prompt nodes substitute these
// instead of prompting.
func (a *app) RunHotkey(ctx context.Context, name, activePath, selection string, vars map[string]any) error {
	if vars == nil {
		vars = make(map[string]any)
	}
	if activePath != "" {
		vars[schema.VarActiveFilePath] = activePath
	}
	if selection != "" {
		vars[schema.VarActiveSelection] = selection
	}
	return a.runWorkflow(ctx, name, schema.TriggerModeHotkey, vars)
}

func (a *app) runWorkflow(ctx context.Context, name string, mode schema.TriggerMode, vars map[string]any) error {
	def, err := a.loader.LoadWorkflow(ctx, name)
	if err != nil {
		return err
	}
	res, err := a.scheduler.Run(ctx, engine.RunRequest{
		Definition:  def,
		TriggerMode: mode,
		InitialVars: vars,
	})
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

var _ trigger.Runner = (*app)(nil)
