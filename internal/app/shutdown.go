package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown shuts down the application. It marks the service not ready and
// cancels the application context, which stops the tick loop and aborts any
// submission still in flight; in-flight BUYs are not drained first. It then
// gives the HTTP server up to 5s to finish, closes the spot feed, spot cache,
// matrix store and storage in that order, and waits without a time bound for
// the background goroutines to return.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if err := a.spotFeed.Close(); err != nil {
		a.logger.Error("spotfeed-close-error", zap.Error(err))
	}

	if a.spotCache != nil {
		if err := a.spotCache.Close(); err != nil {
			a.logger.Error("spotcache-close-error", zap.Error(err))
		}
	}

	if err := a.matrixStore.Close(); err != nil {
		a.logger.Error("matrix-store-close-error", zap.Error(err))
	}

	if err := a.storage.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
	return nil
}
