package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/burstbuild/internal/executor"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/metrics"
	"github.com/specialistvlad/burstbuild/internal/pipeline"
	"github.com/specialistvlad/burstbuild/internal/publish"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/specialistvlad/burstbuild/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []*filetree.Tree
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, tree *filetree.Tree) (*publish.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	unchanged := len(p.published) > 0 && p.published[len(p.published)-1].Equal(tree)
	p.published = append(p.published, tree)
	return &publish.Receipt{Destination: "memory", Fingerprint: tree.Fingerprint(), Files: tree.Len(), Unchanged: unchanged}, nil
}

func (p *fakePublisher) Destination() string { return "memory" }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func (p *fakePublisher) lastTree() *filetree.Tree {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[len(p.published)-1]
}

type fakeNotifier struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNotifier) Notify(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// failOn fails when any input file contains "syntax error".
func failOn(_ context.Context, inputs []*filetree.Tree, _ stage.Config) (*filetree.Tree, error) {
	err := inputs[0].Walk(func(p string, e filetree.Entry) error {
		if strings.Contains(string(e.Content()), "syntax error") {
			return &stage.CompileError{File: p, Line: 1, Message: "syntax error"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inputs[0], nil
}

func newGraph(t *testing.T, dir string) *pipeline.Graph {
	t.Helper()
	b := pipeline.NewBuilder()
	src := b.Source("src", dir, filetree.Filter{})
	b.Compose("check", src, failOn, stage.Config{})
	g, err := b.Finalize()
	require.NoError(t, err)
	return g
}

type fixture struct {
	dir       string
	ctrl      *Controller
	publisher *fakePublisher
	notifier  *fakeNotifier
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"index.html": "<html>", "app.js": "let a = 1;"})

	f := &fixture{dir: dir, publisher: &fakePublisher{}, notifier: &fakeNotifier{}, metrics: metrics.New()}
	ctrl, err := New(Config{
		Graph:     StaticGraph(newGraph(t, dir)),
		Executor:  executor.New(executor.WithWorkers(2), executor.WithMetrics(f.metrics)),
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Metrics:   f.metrics,
		Debounce:  20 * time.Millisecond,
	})
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph function is required")
	assert.Contains(t, err.Error(), "executor is required")
	assert.Contains(t, err.Error(), "publisher is required")
}

func TestController_BuildPublishes(t *testing.T) {
	f := newFixture(t)
	var transitions []string
	f.ctrl.OnTransition(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	report, err := f.ctrl.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"idle->building", "building->published", "published->idle"}, transitions)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, 1, report.Pass)
	assert.True(t, report.Notified)
	assert.Equal(t, []string{"index.html"}, f.notifier.sent())
	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, map[string]string{"index.html": "<html>", "app.js": "let a = 1;"}, testutil.Contents(f.publisher.lastTree()))
	assert.Same(t, report, f.ctrl.LastReport())

	// A second pass over unchanged sources reuses the cache and does not
	// notify again.
	report, err = f.ctrl.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Result.Executed)
	assert.False(t, report.Notified)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestController_FailedBuildPublishesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Build(context.Background())
	require.NoError(t, err)

	testutil.WriteFiles(t, f.dir, map[string]string{"app.js": "syntax error here"})
	var transitions []string
	f.ctrl.OnTransition(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	report, err := f.ctrl.Build(context.Background())
	require.Error(t, err)
	var passErr *executor.PassError
	require.True(t, errors.As(err, &passErr))
	var compileErr *stage.CompileError
	assert.True(t, errors.As(err, &compileErr))
	assert.Equal(t, err, report.Err)

	assert.Equal(t, []string{"idle->building", "building->failed", "failed->idle"}, transitions)
	assert.Equal(t, 1, f.publisher.count(), "a failed pass must not publish")
	assert.Len(t, f.notifier.sent(), 1)

	expected := `
# HELP burstbuild_build_passes_total Number of build passes by result.
# TYPE burstbuild_build_passes_total counter
burstbuild_build_passes_total{result="failed"} 1
burstbuild_build_passes_total{result="published"} 1
`
	require.NoError(t, promtestutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "burstbuild_build_passes_total"))
}

func TestController_PublishErrorFailsPass(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("disk full")

	_, err := f.ctrl.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to memory: disk full")
	assert.Empty(t, f.notifier.sent())
}

func TestController_GraphErrorFailsPass(t *testing.T) {
	ctrl, err := New(Config{
		Graph: func(context.Context) (*pipeline.Graph, error) {
			return nil, &pipeline.CycleError{Stages: []string{"a", "b", "a"}}
		},
		Executor:  executor.New(),
		Publisher: &fakePublisher{},
	})
	require.NoError(t, err)

	_, err = ctrl.Build(context.Background())
	var cycleErr *pipeline.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, Idle, ctrl.State())
}

func TestController_TriggerCoalesces(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Trigger()
	f.ctrl.Trigger()
	f.ctrl.Trigger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	require.Eventually(t, func() bool { return f.publisher.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Nothing else is pending.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.publisher.count())

	cancel()
	require.NoError(t, <-done)
}

func TestController_RunFinishesInFlightPass(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"index.html": "<html>"})
	b := pipeline.NewBuilder()
	b.Compose("slow", b.Source("src", dir, filetree.Filter{}), testutil.Sleeper(100*time.Millisecond), stage.Config{})
	g, err := b.Finalize()
	require.NoError(t, err)

	publisher := &fakePublisher{}
	ctrl, err := New(Config{Graph: StaticGraph(g), Executor: executor.New(), Publisher: publisher})
	require.NoError(t, err)

	started := make(chan struct{})
	var once sync.Once
	ctrl.OnTransition(func(_, to State) {
		if to == Building {
			once.Do(func() { close(started) })
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	ctrl.Trigger()
	<-started
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 1, publisher.count())
	assert.NoError(t, ctrl.LastReport().Err)
}

func TestController_WatchTriggersRebuild(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = f.ctrl.Run(ctx) }()
	go func() { defer wg.Done(); _ = f.ctrl.Watch(ctx) }()

	select {
	case <-f.ctrl.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not start")
	}

	// A burst of writes, including a new subdirectory, coalesces into few passes.
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "lib"), 0o755))
	testutil.WriteFiles(t, f.dir, map[string]string{"lib/util.js": "export const x = 1;"})
	testutil.WriteFiles(t, f.dir, map[string]string{"app.js": "let a = 22;"})

	require.Eventually(t, func() bool {
		if f.publisher.count() < 2 {
			return false
		}
		files := testutil.Contents(f.publisher.lastTree())
		return files["app.js"] == "let a = 22;" && files["lib/util.js"] == "export const x = 1;"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "building", Building.String())
	assert.Equal(t, "published", Published.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
