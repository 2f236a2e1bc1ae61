package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
)

// Watch observes every source directory of the pipeline, recursively, plus
// the configured extra paths, and calls Trigger once events have been quiet
// for the debounce period. It returns when ctx is done.
func (c *Controller) Watch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if !c.sourcesKnown() {
		g, err := c.cfg.Graph(ctx)
		if err != nil {
			return err
		}
		c.rememberSources(g)
	}
	c.addAll(ctx, w)
	c.readyOnce.Do(func() { close(c.ready) })

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	logger.Info("👀 Watching for changes.", "paths", c.watchPaths(), "debounce", c.cfg.Debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("File system event.", "path", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					addTree(ctx, w, ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(c.cfg.Debounce)
			} else {
				timer.Reset(c.cfg.Debounce)
			}
			pending = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)

		case <-pending:
			pending = nil
			// Source directories may have appeared or moved with the last build.
			c.addAll(ctx, w)
			c.Trigger()
		}
	}
}

// Ready is closed once Watch has registered its initial paths.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

func (c *Controller) sourcesKnown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources != nil
}

func (c *Controller) watchPaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]string{}, c.sources...)
	return append(out, c.cfg.ExtraPaths...)
}

func (c *Controller) addAll(ctx context.Context, w *fsnotify.Watcher) {
	for _, p := range c.watchPaths() {
		addTree(ctx, w, p)
	}
}

// addTree watches root and, when it is a directory, every directory below it.
// fsnotify ignores paths that are already watched.
func addTree(ctx context.Context, w *fsnotify.Watcher, root string) {
	logger := ctxlog.FromContext(ctx)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Watch path does not exist, skipping.", "path", root)
			return
		}
		logger.Warn("Cannot watch path.", "path", root, "error", err)
		return
	}
	if !info.IsDir() {
		if err := w.Add(root); err != nil {
			logger.Warn("Cannot watch path.", "path", root, "error", err)
		}
		return
	}
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Cannot watch path.", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			logger.Warn("Cannot watch path.", "path", p, "error", err)
		}
		return nil
	})
}
