package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/stage"
)

// ExecutionRecord holds the start and end times of one transform call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Recorder wraps transforms so tests can count and time their executions.
type Recorder struct {
	mu    sync.Mutex
	calls map[string][]ExecutionRecord
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{calls: make(map[string][]ExecutionRecord)}
}

// Wrap returns fn instrumented under name.
func (r *Recorder) Wrap(name string, fn stage.TransformFunc) stage.TransformFunc {
	return func(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
		start := time.Now()
		out, err := fn(ctx, inputs, cfg)
		r.mu.Lock()
		r.calls[name] = append(r.calls[name], ExecutionRecord{Start: start, End: time.Now()})
		r.mu.Unlock()
		return out, err
	}
}

// Count returns how many times the named transform ran.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[name])
}

// Records returns the executions of the named transform.
func (r *Recorder) Records(name string) []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionRecord(nil), r.calls[name]...)
}

// Identity passes its single input through, or merges several inputs with
// the last one winning.
func Identity(_ context.Context, inputs []*filetree.Tree, _ stage.Config) (*filetree.Tree, error) {
	if len(inputs) == 1 {
		return inputs[0], nil
	}
	out, _ := filetree.MergeOverwrite(inputs...)
	return out, nil
}

// Sleeper returns a pass-through transform that sleeps for d or until the
// context is done.
func Sleeper(d time.Duration) stage.TransformFunc {
	return func(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return Identity(ctx, inputs, cfg)
	}
}
