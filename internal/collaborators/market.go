package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/btc15m-maker/pkg/boterrors"
	"github.com/mselser95/btc15m-maker/pkg/cache"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

// PredictionMarket is the abstract prediction-market collaborator of spec §6:
// market discovery, book reads, and order placement/cancellation/lookup
// against a central-limit order-book exchange. No method commits to a
// specific wire protocol.
type PredictionMarket interface {
	GetMarketByWindow(ctx context.Context, windowStart time.Time) (types.MarketRef, error)
	GetBook(ctx context.Context, token string) (types.BookQuote, error)
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (types.OrderAck, error)
}

// RESTMarket implements PredictionMarket over a generic JSON REST API,
// following the teacher's discovery.Client shape (http.Client with a fixed
// timeout, context-scoped requests, zap logging, fmt.Errorf wrapping) minus
// any on-chain signing: every request is a plain authenticated HTTP call.
type RESTMarket struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// RESTMarketConfig configures a RESTMarket.
type RESTMarketConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewRESTMarket builds a RESTMarket client.
func NewRESTMarket(cfg RESTMarketConfig) *RESTMarket {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 800 * time.Millisecond // spec §5 "hard deadline (default 800ms)"
	}
	return &RESTMarket{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

func (m *RESTMarket) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request %s %s: %w: %w", method, path, err, boterrors.Transient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s %s: server error status %d: %w", method, path, resp.StatusCode, boterrors.Transient)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: auth error status %d: %w", method, path, resp.StatusCode, boterrors.Permanent)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: client error status %d: %w", method, path, resp.StatusCode, boterrors.Permanent)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response %s %s: %w", method, path, err)
		}
	}
	return nil
}

// GetMarketByWindow resolves the exchange market and tokens for a window.
func (m *RESTMarket) GetMarketByWindow(ctx context.Context, windowStart time.Time) (types.MarketRef, error) {
	var ref types.MarketRef
	path := fmt.Sprintf("/markets/by-window?start=%s", windowStart.UTC().Format(time.RFC3339))
	if err := m.do(ctx, http.MethodGet, path, nil, &ref); err != nil {
		return types.MarketRef{}, fmt.Errorf("get market by window: %w", err)
	}
	return ref, nil
}

// GetBook fetches best bid/ask and resting sizes for token.
func (m *RESTMarket) GetBook(ctx context.Context, token string) (types.BookQuote, error) {
	var q types.BookQuote
	path := fmt.Sprintf("/books/%s", token)
	if err := m.do(ctx, http.MethodGet, path, nil, &q); err != nil {
		return types.BookQuote{}, fmt.Errorf("get book %s: %w", token, err)
	}
	q.Timestamp = time.Now()
	return q, nil
}

// PlaceOrder submits an order. client_id is carried in the request so the
// exchange can deduplicate (spec §4.H idempotency).
func (m *RESTMarket) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	var ack types.OrderAck
	if err := m.do(ctx, http.MethodPost, "/orders", req, &ack); err != nil {
		return types.OrderAck{}, fmt.Errorf("place order %s: %w", req.ClientID, err)
	}
	return ack, nil
}

// CancelOrder cancels a resting order by id.
func (m *RESTMarket) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/orders/%s/cancel", orderID)
	if err := m.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetOrder fetches the current status of orderID, for reconciliation after a
// restart (spec §5 "persists pending executions ... so a restart can
// reconcile via order_id lookup").
func (m *RESTMarket) GetOrder(ctx context.Context, orderID string) (types.OrderAck, error) {
	var ack types.OrderAck
	path := fmt.Sprintf("/orders/%s", orderID)
	if err := m.do(ctx, http.MethodGet, path, nil, &ack); err != nil {
		return types.OrderAck{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return ack, nil
}

const bookCacheTTLPrefix = "book:"

// CachedMarket wraps a PredictionMarket's GetBook with a short-TTL cache
// (spec §4.G step 3, "cached <= 200ms"); all other methods pass through.
type CachedMarket struct {
	PredictionMarket
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedMarket wraps upstream's book reads with a cache.Cache using ttl
// (spec default 200ms).
func NewCachedMarket(upstream PredictionMarket, c cache.Cache, ttl time.Duration) *CachedMarket {
	return &CachedMarket{PredictionMarket: upstream, cache: c, ttl: ttl}
}

// GetBook returns the cached book quote if still fresh, otherwise delegates
// upstream and refreshes the cache.
func (m *CachedMarket) GetBook(ctx context.Context, token string) (types.BookQuote, error) {
	key := bookCacheTTLPrefix + token
	if v, ok := m.cache.Get(key); ok {
		if q, ok := v.(types.BookQuote); ok {
			return q, nil
		}
	}

	q, err := m.PredictionMarket.GetBook(ctx, token)
	if err != nil {
		return types.BookQuote{}, err
	}

	m.cache.Set(key, q, m.ttl)
	return q, nil
}
