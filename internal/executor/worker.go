package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, p *pass, readyChan chan *node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "stage", n.stage.Name)

		if ctx.Err() != nil {
			workerLogger.Warn("Context canceled, skipping stage execution.")
			e.fail(ctx, p, n, ctx.Err())
			continue
		}

		n.state.Store(int32(stateRunning))
		var err error
		if n.stage.Kind == stage.KindSource {
			err = e.runSource(ctxlog.WithLogger(ctx, workerLogger), n)
		} else {
			err = e.runTransform(ctxlog.WithLogger(ctx, workerLogger), n)
		}
		if err != nil {
			workerLogger.Error("Stage failed.", "error", err)
			e.fail(ctx, p, n, err)
			continue
		}

		n.state.Store(int32(stateDone))
		for _, dependent := range n.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent stage.", "dependent", dependent.stage.Name)
				readyChan <- dependent
			}
		}
		p.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func (e *Executor) fail(ctx context.Context, p *pass, n *node, err error) {
	n.state.Store(int32(stateFailed))
	n.err = err
	e.metrics.StageFailed(n.stage.Name)
	e.skipDependents(ctx, p, n, n.stage.Name)
	p.wg.Done()
}

// skipDependents recursively marks every downstream stage as failed. A
// skipped stage never becomes ready because its failed input never releases
// it, so only skipDependents completes it.
func (e *Executor) skipDependents(ctx context.Context, p *pass, n *node, cause string) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent stage due to upstream failure.", "stage", dependent.stage.Name, "dependency", cause)
			dependent.state.Store(int32(stateFailed))
			dependent.cause = cause
			dependent.err = fmt.Errorf("skipped due to upstream failure of %q", cause)
			p.wg.Done()
			e.skipDependents(ctx, p, dependent, cause)
		})
	}
}

// runSource snapshots the source directory. The filtered tree is cached
// against the raw snapshot fingerprint so an unchanged directory yields the
// identical tree value.
func (e *Executor) runSource(ctx context.Context, n *node) error {
	logger := ctxlog.FromContext(ctx)
	s := n.stage
	raw, err := e.scanner.Snapshot(s.Source.Path)
	if err != nil {
		return err
	}
	inputs := []filetree.Fingerprint{raw.Fingerprint()}
	config := s.ConfigFingerprint()
	n.outcome = outcomeScanned

	if entry, ok := e.cache.get(s.Name); ok && entry.matches(inputs, config) {
		logger.Debug("Source unchanged.", "files", entry.Output.Len())
		n.output = entry.Output
		return nil
	}

	out, err := s.Source.Filter.Apply(raw)
	if err != nil {
		return err
	}
	logger.Debug("Source scanned.", "files", out.Len(), "fingerprint", out.Fingerprint().Short(12))
	e.cache.put(&CacheEntry{Stage: s.Name, InputFingerprints: inputs, ConfigFingerprint: config, Output: out})
	n.output = out
	return nil
}

// runTransform serves the stage from its cache slot when the key matches and
// executes it otherwise. Only successful executions replace the slot.
func (e *Executor) runTransform(ctx context.Context, n *node) error {
	logger := ctxlog.FromContext(ctx)
	s := n.stage

	inputs := make([]*filetree.Tree, len(n.inputs))
	keys := make([]filetree.Fingerprint, len(n.inputs))
	for i, in := range n.inputs {
		inputs[i] = in.output
		keys[i] = in.output.Fingerprint()
	}
	config := s.ConfigFingerprint()

	if entry, ok := e.cache.get(s.Name); ok && entry.matches(keys, config) {
		logger.Debug("♻️ Reusing cached stage output.")
		e.metrics.StageReused(s.Name)
		n.output = entry.Output
		n.warnings = entry.Warnings
		n.outcome = outcomeReused
		return nil
	}

	logger.Info("▶️ Executing stage.", "inputs", len(inputs))
	start := time.Now()
	out, err := s.Execute(ctx, inputs)
	elapsed := time.Since(start)
	if err != nil && (out == nil || stage.IsFatal(err, e.strict)) {
		return err
	}
	if out == nil {
		return fmt.Errorf("stage %q returned no tree", s.Name)
	}
	e.metrics.StageExecuted(s.Name, elapsed)

	var warnings []error
	if err != nil {
		logger.Warn("Stage reported a non-fatal problem.", "error", err)
		warnings = []error{err}
	}
	e.cache.put(&CacheEntry{
		Stage:             s.Name,
		InputFingerprints: keys,
		ConfigFingerprint: config,
		Output:            out,
		Warnings:          warnings,
	})
	n.output = out
	n.warnings = warnings
	n.outcome = outcomeExecuted
	logger.Info("✅ Stage finished.", "files", out.Len(), "duration", elapsed)
	return nil
}
