package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
)

func TestParseTickParsesValidTicker(t *testing.T) {
	tick := tickerMessage{Type: "ticker", ProductID: "BTC-USD", Price: "65000.50", Time: "2026-08-03T12:00:00.000000Z"}

	q, err := parseTick(tick)
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("65000.50")))
}

func TestParseTickRejectsBadPrice(t *testing.T) {
	tick := tickerMessage{Type: "ticker", ProductID: "BTC-USD", Price: "not-a-number"}
	_, err := parseTick(tick)
	assert.Error(t, err)
}

func TestGetLatestBTCUSDErrorsBeforeFirstTick(t *testing.T) {
	f := &SpotFeed{logger: zap.NewNop()}
	_, err := f.GetLatestBTCUSD(context.Background())
	assert.ErrorIs(t, err, boterrors.Transient)
}

// TestSpotFeedStreamsTicks spins up a local WebSocket server that pushes one
// ticker message, and asserts Start's read loop picks it up.
func TestSpotFeedStreamsTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Drain the subscribe message.
		_, _, _ = conn.ReadMessage()

		msg := tickerMessage{Type: "ticker", ProductID: "BTC-USD", Price: "50000.00", Time: time.Now().UTC().Format(time.RFC3339Nano)}
		b, _ := json.Marshal(msg)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))

		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	f := NewSpotFeed(SpotFeedConfig{
		URL:                   wsURL,
		ProductID:             "BTC-USD",
		DialTimeout:           time.Second,
		PingInterval:          time.Hour,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     100 * time.Millisecond,
		ReconnectBackoffMult:  2,
		Logger:                zap.NewNop(),
	})
	require.NoError(t, f.Start())
	defer f.Close()

	require.Eventually(t, func() bool {
		q, err := f.GetLatestBTCUSD(context.Background())
		return err == nil && q.Price.Equal(decimal.RequireFromString("50000.00"))
	}, time.Second, 10*time.Millisecond)
}
