// Package app wires every component of btc15m-maker into a running
// application: collaborators, Matrix Store, Decision Engine, Execution State
// Machine, storage, and the HTTP status/metrics server. Grounded on the
// teacher's internal/app package (App/Options/New/Run/Shutdown split across
// app.go/setup.go/run.go/shutdown.go).
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/internal/collaborators"
	"github.com/mselser95/btc15m-maker/internal/decision"
	"github.com/mselser95/btc15m-maker/internal/execution"
	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/internal/risk"
	"github.com/mselser95/btc15m-maker/internal/storage"
	"github.com/mselser95/btc15m-maker/pkg/config"
	"github.com/mselser95/btc15m-maker/pkg/healthprobe"
	"github.com/mselser95/btc15m-maker/pkg/httpserver"
	"github.com/mselser95/btc15m-maker/pkg/spotcache"
	"github.com/mselser95/btc15m-maker/pkg/websocket"
)

// App is the main application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	spot     collaborators.SpotPriceSource
	spotFeed *websocket.SpotFeed // always set by New; needs Close
	market   collaborators.PredictionMarket

	matrixStore matrix.Store
	spotCache   *spotcache.Cache // optional; nil disables the hot-reload pub/sub

	risk    *risk.Accounting
	exec    *execution.Manager
	engine  *decision.Engine
	storage storage.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// CandleHistoryPath is not read by Run or by any subcommand; the
	// build/backtest CLI subcommands take their candle file from their own
	// --history flag (internal/candles.LoadCSV).
	CandleHistoryPath string
}
