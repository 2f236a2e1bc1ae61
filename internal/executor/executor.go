package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/metrics"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

// Executor runs graphs and keeps the stage cache between runs. Passes on
// one Executor are serialized.
type Executor struct {
	numWorkers int
	strict     bool
	scanner    *filetree.Scanner
	metrics    *metrics.Metrics
	cache      *cache
	runMu      sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the size of the worker pool. Values below one select
// runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(e *Executor) { e.numWorkers = n }
}

// WithStrict makes lint errors and merge conflicts fail the pass.
func WithStrict(strict bool) Option {
	return func(e *Executor) { e.strict = strict }
}

// WithScanner sets the scanner used to snapshot source stages.
func WithScanner(s *filetree.Scanner) Option {
	return func(e *Executor) { e.scanner = s }
}

// WithMetrics records stage executions, cache hits and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an Executor with an empty cache.
func New(opts ...Option) *Executor {
	e := &Executor{cache: newCache()}
	for _, opt := range opts {
		opt(e)
	}
	if e.numWorkers < 1 {
		e.numWorkers = runtime.NumCPU()
	}
	if e.scanner == nil {
		e.scanner = filetree.NewScanner(0)
	}
	return e
}

// Strict reports whether the executor runs in strict mode.
func (e *Executor) Strict() bool { return e.strict }

// Entry returns the cache slot of a stage.
func (e *Executor) Entry(name string) (*CacheEntry, bool) {
	return e.cache.get(name)
}

// CacheLen returns the number of populated cache slots.
func (e *Executor) CacheLen() int { return e.cache.len() }

// Invalidate drops the cache slots of the named stages so they execute on
// the next pass.
func (e *Executor) Invalidate(names ...string) {
	e.cache.delete(names...)
}

// Reset drops every cache slot.
func (e *Executor) Reset() {
	e.cache.reset()
}

type nodeState int32

const (
	statePending nodeState = iota
	stateRunning
	stateDone
	stateFailed
)

// node is the per-pass execution record of one stage.
type node struct {
	stage      *stage.Stage
	inputs     []*node
	dependents []*node
	depCount   atomic.Int32
	state      atomic.Int32
	skipOnce   sync.Once

	// Written by the worker running the node before its dependents are
	// released, read afterwards.
	output   *filetree.Tree
	outcome  outcome
	warnings []error
	err      error
	cause    string
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeExecuted
	outcomeReused
	outcomeScanned
)

type pass struct {
	nodes []*node
	wg    sync.WaitGroup
}

func newPass(g *pipeline.Graph) *pass {
	order := g.Order()
	p := &pass{nodes: make([]*node, len(order))}
	byName := make(map[string]*node, len(order))
	for i, name := range order {
		s, _ := g.Stage(name)
		n := &node{stage: s}
		p.nodes[i] = n
		byName[name] = n
	}
	for _, n := range p.nodes {
		seen := make(map[string]bool)
		for _, in := range n.stage.Inputs {
			dep := byName[in]
			n.inputs = append(n.inputs, dep)
			if !seen[in] {
				seen[in] = true
				dep.dependents = append(dep.dependents, n)
				n.depCount.Add(1)
			}
		}
	}
	return p
}

// Run executes one build pass over g. Every stage runs at most once. The
// pass succeeds when the terminal stage produced a tree; otherwise the
// error is a *PassError describing each failed and skipped stage.
func (e *Executor) Run(ctx context.Context, g *pipeline.Graph) (*Result, error) {
	if g == nil {
		return nil, errors.New("executor: nil graph")
	}
	e.runMu.Lock()
	defer e.runMu.Unlock()

	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	p := newPass(g)

	readyChan := make(chan *node, len(p.nodes))
	logger.Debug("Initializing pass, finding root stages...", "stages", len(p.nodes))
	for _, n := range p.nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
		}
	}

	p.wg.Add(len(p.nodes))
	workers := min(e.numWorkers, len(p.nodes))
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		go e.worker(ctx, p, readyChan, i)
	}
	p.wg.Wait()
	close(readyChan)

	res := &Result{Outputs: make(map[string]*filetree.Tree), Duration: time.Since(start)}
	var failures []StageFailure
	for _, n := range p.nodes {
		name := n.stage.Name
		for _, w := range n.warnings {
			res.Warnings = append(res.Warnings, StageWarning{Stage: name, Err: w})
		}
		if nodeState(n.state.Load()) != stateDone {
			failures = append(failures, StageFailure{Stage: name, Err: n.err, Cause: n.cause})
			continue
		}
		res.Outputs[name] = n.output
		switch n.outcome {
		case outcomeExecuted:
			res.Executed = append(res.Executed, name)
		case outcomeReused:
			res.Reused = append(res.Reused, name)
		case outcomeScanned:
			res.Scanned = append(res.Scanned, name)
		}
	}

	if len(failures) > 0 {
		pe := &PassError{Failures: failures}
		for _, n := range p.nodes {
			if nodeState(n.state.Load()) == stateDone {
				pe.Completed = append(pe.Completed, n.stage.Name)
			}
		}
		logger.Error("Build pass failed.", "failed", pe.Failed(), "duration", res.Duration)
		return nil, pe
	}

	terminal, ok := res.Outputs[g.Terminal()]
	if !ok {
		return nil, fmt.Errorf("executor: terminal stage %q produced no output", g.Terminal())
	}
	res.Terminal = terminal
	logger.Info("Build pass completed.",
		"executed", len(res.Executed),
		"reused", len(res.Reused),
		"scanned", len(res.Scanned),
		"warnings", len(res.Warnings),
		"duration", res.Duration,
	)
	return res, nil
}
