package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/executor"
	"github.com/specialistvlad/burstbuild/internal/livereload"
	"github.com/specialistvlad/burstbuild/internal/metrics"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/publish"
)

// DefaultDebounce is the quiet period after the last file-system event
// before a build is triggered.
const DefaultDebounce = 100 * time.Millisecond

// State is the controller's position in its build cycle.
type State int

const (
	Idle State = iota
	Building
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Published:
		return "published"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GraphFunc produces the graph for the next pass. It is called once per
// pass so that definition changes are picked up; stage caches survive as
// long as stage names and configurations are unchanged.
type GraphFunc func(ctx context.Context) (*pipeline.Graph, error)

// StaticGraph returns a GraphFunc always yielding g.
func StaticGraph(g *pipeline.Graph) GraphFunc {
	return func(context.Context) (*pipeline.Graph, error) { return g, nil }
}

// Config wires a Controller.
type Config struct {
	Graph     GraphFunc
	Executor  *executor.Executor
	Publisher publish.Publisher
	// Notifier, when set, is told about every publication that changed the
	// destination. NotifyPath is the path it reports, "index.html" by default.
	Notifier   livereload.Notifier
	NotifyPath string
	Metrics    *metrics.Metrics
	// Debounce is the quiet period Watch waits for; DefaultDebounce when zero.
	Debounce time.Duration
	// ExtraPaths are watched in addition to the graph's source directories,
	// e.g. the pipeline definition file.
	ExtraPaths []string
}

// Report describes one build pass.
type Report struct {
	Pass     int
	Started  time.Time
	Duration time.Duration
	Result   *executor.Result
	Receipt  *publish.Receipt
	Notified bool
	Err      error
}

// Controller runs build passes and publishes their results. Passes are
// serialized; a failed pass publishes nothing.
type Controller struct {
	cfg     Config
	trigger chan struct{}
	buildMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.RWMutex
	state   State
	hooks   []func(from, to State)
	last    *Report
	passes  int
	sources []string
}

// New validates cfg and creates a Controller in the Idle state.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Graph == nil {
		errs = append(errs, errors.New("watch: graph function is required"))
	}
	if cfg.Executor == nil {
		errs = append(errs, errors.New("watch: executor is required"))
	}
	if cfg.Publisher == nil {
		errs = append(errs, errors.New("watch: publisher is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.NotifyPath == "" {
		cfg.NotifyPath = "index.html"
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Controller{cfg: cfg, trigger: make(chan struct{}, 1), ready: make(chan struct{})}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastReport returns the report of the most recent pass, or nil.
func (c *Controller) LastReport() *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// OnTransition registers fn to be called after every state change. Hooks run
// synchronously on the building goroutine.
func (c *Controller) OnTransition(fn func(from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Controller) setState(ctx context.Context, to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	hooks := append([]func(from, to State){}, c.hooks...)
	c.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("🔄 Controller state changed.", "from", from, "to", to)
	for _, fn := range hooks {
		fn(from, to)
	}
}

// Trigger requests a build. Requests made while a build is pending are
// coalesced into that build.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Build runs one pass and publishes its result. On failure the error is
// returned and nothing is published.
func (c *Controller) Build(ctx context.Context) (*Report, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	c.mu.Lock()
	c.passes++
	report := &Report{Pass: c.passes, Started: time.Now()}
	c.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("pass", report.Pass)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Build started.")
	c.setState(ctx, Building)

	err := c.build(ctx, report)
	report.Duration = time.Since(report.Started)

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()

	if err != nil {
		report.Err = err
		c.cfg.Metrics.PassFinished(metrics.ResultFailed, report.Duration)
		logger.Error("❌ Build failed.", "error", err, "duration", report.Duration)
		c.setState(ctx, Failed)
		c.setState(ctx, Idle)
		return report, err
	}

	c.cfg.Metrics.PassFinished(metrics.ResultPublished, report.Duration)
	logger.Info("✅ Build published.",
		"destination", report.Receipt.Destination,
		"files", report.Receipt.Files,
		"unchanged", report.Receipt.Unchanged,
		"duration", report.Duration,
	)
	c.setState(ctx, Published)
	c.setState(ctx, Idle)
	return report, nil
}

func (c *Controller) build(ctx context.Context, report *Report) error {
	logger := ctxlog.FromContext(ctx)

	g, err := c.cfg.Graph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}
	c.rememberSources(g)

	res, err := c.cfg.Executor.Run(ctx, g)
	if err != nil {
		return err
	}
	report.Result = res
	for _, w := range res.Warnings {
		logger.Warn("Stage reported a warning.", "stage", w.Stage, "warning", w.Err)
	}

	receipt, err := c.cfg.Publisher.Publish(ctx, res.Terminal)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.cfg.Publisher.Destination(), err)
	}
	report.Receipt = receipt

	if c.cfg.Notifier != nil && !receipt.Unchanged {
		if err := c.cfg.Notifier.Notify(ctx, c.cfg.NotifyPath); err != nil {
			logger.Warn("Live reload notification failed.", "error", err)
		} else {
			report.Notified = true
			logger.Debug("♻️ Live reload notified.", "path", c.cfg.NotifyPath)
		}
	}
	return nil
}

func (c *Controller) rememberSources(g *pipeline.Graph) {
	paths := make([]string, 0)
	for _, s := range g.Sources() {
		paths = append(paths, s.Source.Path)
	}
	c.mu.Lock()
	c.sources = paths
	c.mu.Unlock()
}

// Run builds once per trigger until ctx is done. A pass in flight when ctx
// is cancelled runs to completion, including publishing.
func (c *Controller) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Controller loop started.")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Controller loop stopped.")
			return nil
		case <-c.trigger:
			// Failures are reported by Build and the loop keeps serving.
			_, _ = c.Build(context.WithoutCancel(ctx))
		}
	}
}
