package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/burstbuild/internal/blueprint"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/executor"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/hcl"
	"github.com/specialistvlad/burstbuild/internal/livereload"
	"github.com/specialistvlad/burstbuild/internal/metrics"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/publish"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/watch"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	ctx    context.Context
	logger *slog.Logger
	config *Config

	registry     *registry.Registry
	pipelinePath string
	metrics      *metrics.Metrics
	executor     *executor.Executor
	publisher    publish.Publisher
	reload       *livereload.Server
	controller   *watch.Controller

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// metrics. The pipeline is loaded once here so that definition errors and
// cycles surface before any build starts.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.NewWith(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "transforms", reg.Names())

	a := &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		registry: reg,
		metrics:  metrics.New(),
	}

	path, err := resolvePipelinePath(cfg)
	if err != nil {
		return nil, err
	}
	a.pipelinePath = path

	if _, err := a.loadGraph(ctx); err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}

	a.executor = executor.New(
		executor.WithWorkers(cfg.WorkerCount),
		executor.WithStrict(cfg.Strict),
		executor.WithScanner(filetree.NewScanner(0)),
		executor.WithMetrics(a.metrics),
	)

	a.publisher, err = publish.New(cfg.Dest, publish.S3ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to configure publisher: %w", err)
	}

	wcfg := watch.Config{
		Graph:     a.loadGraph,
		Executor:  a.executor,
		Publisher: a.publisher,
		Metrics:   a.metrics,
		Debounce:  cfg.Debounce,
	}
	if a.pipelinePath != "" {
		wcfg.ExtraPaths = []string{a.pipelinePath}
	}
	if cfg.Development() {
		a.reload = livereload.NewServer(ctx)
		wcfg.Notifier = a.reload
	}
	a.controller, err = watch.New(wcfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("App initialized.",
		"env", cfg.Env,
		"pipeline", a.pipelineName(),
		"destination", a.publisher.Destination(),
	)
	return a, nil
}

// resolvePipelinePath returns the HCL definition to use, or "" for the
// built-in blueprint.
func resolvePipelinePath(cfg *Config) (string, error) {
	if cfg.PipelinePath != "" {
		if _, err := os.Stat(cfg.PipelinePath); err != nil {
			return "", fmt.Errorf("pipeline file: %w", err)
		}
		return cfg.PipelinePath, nil
	}
	candidate := filepath.Join(cfg.ProjectDir, hcl.DefaultFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("pipeline file: %w", err)
	}
	return "", nil
}

// loadGraph builds the pipeline graph for the configured environment.
func (a *App) loadGraph(ctx context.Context) (*pipeline.Graph, error) {
	if a.pipelinePath == "" {
		return blueprint.Build(blueprint.Options{
			ProjectDir:    a.config.ProjectDir,
			Env:           a.config.Env,
			LiveReloadURL: a.config.LiveReloadURL,
		})
	}
	return hcl.NewLoader(a.registry).LoadFile(ctx, a.pipelinePath, hcl.Variables{
		Env:        a.config.Env,
		ProjectDir: a.config.ProjectDir,
	})
}

func (a *App) pipelineName() string {
	if a.pipelinePath == "" {
		return "blueprint"
	}
	return a.pipelinePath
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Controller returns the application's watch controller.
func (a *App) Controller() *watch.Controller {
	return a.controller
}

// Metrics returns the application's metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// LiveReload returns the live-reload server, or nil outside development.
func (a *App) LiveReload() *livereload.Server {
	return a.reload
}
