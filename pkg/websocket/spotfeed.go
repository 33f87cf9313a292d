// Package websocket implements SpotFeed, a streaming realization of the
// abstract collaborators.SpotPriceSource (spec §6) over a public exchange's
// ticker WebSocket channel. Where RESTMarket polls, SpotFeed pushes: the
// read loop keeps a single latest quote updated in the background so the
// Decision Engine's tick never pays a network round-trip.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// tickerMessage is the subset of an exchange ticker-channel push relevant to
// spot price tracking. Field names follow the common "price"/"time" shape
// shared by most public ticker feeds (Coinbase, Kraken-style JSON framing).
type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

// SpotFeed streams BTC/USD ticks from a single WebSocket connection and
// exposes the latest one via GetLatestBTCUSD, implementing
// collaborators.SpotPriceSource.
type SpotFeed struct {
	url         string
	productID   string
	conn        *websocket.Conn
	logger      *zap.Logger
	reconnectMgr *ReconnectManager
	config      SpotFeedConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	connected atomic.Bool
	latest    atomic.Pointer[types.SpotQuote]
}

// SpotFeedConfig holds SpotFeed configuration.
type SpotFeedConfig struct {
	URL                   string
	ProductID             string // e.g. "BTC-USD"
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	Logger                *zap.Logger
}

// NewSpotFeed creates a new SpotFeed. Start must be called before quotes
// become available.
func NewSpotFeed(cfg SpotFeedConfig) *SpotFeed {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &SpotFeed{
		url:          cfg.URL,
		productID:    cfg.ProductID,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start dials the feed and begins the read/ping/reconnect goroutines.
func (f *SpotFeed) Start() error {
	f.logger.Info("spotfeed-starting", zap.String("url", f.url))

	if err := f.connect(f.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	if err := f.subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.wg.Add(3)
	go f.readLoop()
	go f.pingLoop()
	go f.reconnectLoop()

	return nil
}

func (f *SpotFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.config.DialTimeout}

	f.logger.Info("connecting-to-spotfeed", zap.String("url", f.url))

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error { return nil })

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.connected.Store(true)
	ActiveConnections.Set(1)

	f.logger.Info("spotfeed-connected")

	return nil
}

func (f *SpotFeed) subscribe() error {
	msg := map[string]interface{}{
		"type":        "subscribe",
		"product_ids": []string{f.productID},
		"channels":    []string{"ticker"},
	}

	f.mu.RLock()
	err := f.conn.WriteJSON(msg)
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}
	SubscriptionCount.Set(1)
	return nil
}

func (f *SpotFeed) readLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("spotfeed-read-error", zap.Error(err))
			f.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		start := time.Now()

		var tick tickerMessage
		if err := json.Unmarshal(message, &tick); err != nil {
			f.logger.Debug("spotfeed-unparseable-message", zap.Error(err), zap.Int("bytes", len(message)))
			continue
		}

		if tick.Type != "ticker" || tick.Price == "" {
			MessagesReceivedTotal.WithLabelValues(tick.Type).Inc()
			continue
		}

		quote, err := parseTick(tick)
		if err != nil {
			f.logger.Warn("spotfeed-bad-tick", zap.Error(err))
			continue
		}

		f.latest.Store(&quote)
		MessagesReceivedTotal.WithLabelValues("ticker").Inc()
		MessageLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

func (f *SpotFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			if !f.connected.Load() {
				continue
			}

			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				f.logger.Warn("spotfeed-ping-error", zap.Error(err))
			}
		}
	}
}

func (f *SpotFeed) reconnectLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if f.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		f.logger.Warn("spotfeed-connection-lost-reconnecting")

		err := f.reconnectMgr.Reconnect(f.ctx, f.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			f.logger.Error("spotfeed-reconnection-failed", zap.Error(err))
			continue
		}

		if err := f.subscribe(); err != nil {
			f.logger.Error("spotfeed-resubscribe-failed", zap.Error(err))
			f.connected.Store(false)
			continue
		}

		f.logger.Info("spotfeed-reconnection-complete")

		f.wg.Add(1)
		go f.readLoop()
	}
}

// GetLatestBTCUSD implements collaborators.SpotPriceSource. It returns
// boterrors.Transient if no tick has been received yet.
func (f *SpotFeed) GetLatestBTCUSD(ctx context.Context) (types.SpotQuote, error) {
	q := f.latest.Load()
	if q == nil {
		return types.SpotQuote{}, fmt.Errorf("spotfeed: no tick received yet: %w", boterrors.Transient)
	}
	return *q, nil
}

// Close gracefully tears down the feed.
func (f *SpotFeed) Close() error {
	f.logger.Info("closing-spotfeed")

	f.cancel()

	f.mu.RLock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.RUnlock()

	f.wg.Wait()

	ActiveConnections.Set(0)

	f.logger.Info("spotfeed-closed")

	return nil
}

func parseTick(tick tickerMessage) (types.SpotQuote, error) {
	price, err := decimal.NewFromString(tick.Price)
	if err != nil {
		return types.SpotQuote{}, fmt.Errorf("parse price %q: %w", tick.Price, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, tick.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	return types.SpotQuote{Price: price, Timestamp: ts}, nil
}
