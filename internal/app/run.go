package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("storage-mode", a.cfg.StorageMode))

	a.startComponents()

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready")

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	if err := a.spotFeed.Start(); err != nil {
		a.logger.Error("spotfeed-start-failed", zap.Error(err))
	}

	a.wg.Add(1)
	go a.runDecisionEngine()

	if a.spotCache != nil {
		a.wg.Add(1)
		go a.runHotReloadWatcher()
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDecisionEngine() {
	defer a.wg.Done()
	if err := a.engine.Run(a.ctx); err != nil && a.ctx.Err() == nil {
		a.logger.Error("decision-engine-error", zap.Error(err))
	}
}

func (a *App) runHotReloadWatcher() {
	defer a.wg.Done()
	notifications := a.spotCache.SubscribeSnapshotReplaced(a.ctx)
	a.engine.WatchHotReload(a.ctx, notifications, a.matrixStore)
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
