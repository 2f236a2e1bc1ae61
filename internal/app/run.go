package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/burstbuild/internal/ctxlog"
)

// Run builds the project once and publishes the result. In watch mode it
// then keeps rebuilding on source changes until ctx is done; build failures
// are reported and watching continues.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	a.logger.Info("🌳 Environment: "+a.config.Env, "pipeline", a.pipelineName(), "destination", a.publisher.Destination())

	if !a.config.Watch {
		if _, err := a.controller.Build(ctx); err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		a.logger.Info("🏁 Build finished.")
		return nil
	}
	return a.watch(ctx)
}

func (a *App) watch(ctx context.Context) error {
	if _, err := a.startServer(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		watchErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = a.controller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		watchErr = a.controller.Watch(ctx)
	}()
	a.controller.Trigger()

	wg.Wait()
	a.logger.Info("Stopping watch mode.")
	return errors.Join(watchErr, a.closeServer())
}
