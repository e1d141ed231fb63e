package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crypto_scalper/internal/domain"
	"crypto_scalper/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is the Bybit v5 REST API Client (Boundary Layer).
// Calls run one at a time, spaced by the configured minimum interval.
type Client struct {
	baseURL    string
	category   string
	symbol     string
	httpClient *http.Client
	signer     *Signer
	limiter    *rate.Limiter
	slot       chan struct{}
	now        func() time.Time
	logger     *slog.Logger
}

// NewClient creates a new Bybit API client for one symbol.
func NewClient(cfg infra.BybitConfig, symbol string) *Client {
	interval := time.Duration(cfg.MinIntervalMS) * time.Millisecond
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Client{
		baseURL:  cfg.REST(),
		category: cfg.Category,
		symbol:   symbol,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer:  NewSigner(cfg.APIKey, cfg.APISecret, time.Duration(cfg.RecvWindowMS)*time.Millisecond),
		limiter: rate.NewLimiter(limit, 1),
		slot:    make(chan struct{}, 1),
		now:     time.Now,
		logger:  slog.Default().With("module", "bybit_client"),
	}
}

// FetchInstrument loads tick size, quantity step and minimum order size.
// Quoting must not start without them.
func (c *Client) FetchInstrument(ctx context.Context) (domain.Instrument, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", c.symbol)

	var res instrumentsResult
	if err := c.do(ctx, "instruments", http.MethodGet, "/v5/market/instruments-info", q, nil, false, &res); err != nil {
		return domain.Instrument{}, err
	}
	if len(res.List) == 0 {
		return domain.Instrument{}, &domain.ConfigError{Field: "symbol", Err: fmt.Errorf("%w: %s", domain.ErrInvalidSymbol, c.symbol)}
	}

	info := res.List[0]
	step := info.LotSizeFilter.QtyStep
	if step == "" {
		step = info.LotSizeFilter.BasePrecision
	}
	inst := domain.Instrument{
		Symbol:      info.Symbol,
		TickSize:    parseDecimal(info.PriceFilter.TickSize),
		QtyStep:     parseDecimal(step),
		MinOrderQty: parseDecimal(info.LotSizeFilter.MinOrderQty),
	}
	if err := inst.Validate(); err != nil {
		return domain.Instrument{}, err
	}

	c.logger.Info("Instrument loaded",
		slog.String("symbol", inst.Symbol),
		slog.String("tick_size", inst.TickSize.String()),
		slog.String("qty_step", inst.QtyStep.String()),
		slog.String("min_order_qty", inst.MinOrderQty.String()),
	)
	return inst, nil
}

// PlaceLimit submits a limit order. A zero retCode without an orderId is
// reported as ErrNoOrderID.
func (c *Client) PlaceLimit(ctx context.Context, order domain.LimitOrder) (domain.PlaceResult, error) {
	linkID := fmt.Sprintf("%s%d-%s-%s", domain.LinkIDPrefix, c.now().UnixMilli(), order.Side, uuid.NewString()[:8])
	req := createOrderRequest{
		Category:    c.category,
		Symbol:      c.symbol,
		Side:        string(order.Side),
		OrderType:   "Limit",
		Qty:         formatNumber(order.Qty),
		Price:       formatNumber(order.Price),
		TimeInForce: string(order.TimeInForce),
		ReduceOnly:  order.ReduceOnly,
		OrderLinkID: linkID,
	}

	var res orderResult
	if err := c.do(ctx, "place", http.MethodPost, "/v5/order/create", nil, req, true, &res); err != nil {
		return domain.PlaceResult{}, err
	}
	if res.OrderID == "" {
		return domain.PlaceResult{}, domain.ErrNoOrderID
	}

	c.logger.Info("Order placed",
		slog.String("order_id", res.OrderID),
		slog.String("side", req.Side),
		slog.String("price", req.Price),
		slog.String("qty", req.Qty),
	)
	return domain.PlaceResult{OrderID: res.OrderID, OrderLinkID: linkID}, nil
}

// CancelOrder cancels by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]string{
		"category": c.category,
		"symbol":   c.symbol,
		"orderId":  orderID,
	}
	if err := c.do(ctx, "cancel", http.MethodPost, "/v5/order/cancel", nil, body, true, nil); err != nil {
		return err
	}
	c.logger.Debug("Order cancelled", slog.String("order_id", orderID))
	return nil
}

// CancelAll cancels every open order on the symbol.
func (c *Client) CancelAll(ctx context.Context) error {
	body := map[string]string{
		"category": c.category,
		"symbol":   c.symbol,
	}
	if err := c.do(ctx, "cancel_all", http.MethodPost, "/v5/order/cancel-all", nil, body, true, nil); err != nil {
		return err
	}
	c.logger.Info("Cancelled all open orders", slog.String("symbol", c.symbol))
	return nil
}

// SetLeverage sets both sides to the same leverage. An unchanged leverage is
// not an error.
func (c *Client) SetLeverage(ctx context.Context, leverage int) error {
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     c.category,
		"symbol":       c.symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	err := c.do(ctx, "set_leverage", http.MethodPost, "/v5/position/set-leverage", nil, body, true, nil)
	var exErr *domain.ExchangeError
	if errors.As(err, &exErr) && exErr.RetCode == retCodeLeverageNotModified {
		err = nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("Leverage set", slog.Int("leverage", leverage))
	return nil
}

// do runs one request through the limiter and decodes the v5 envelope.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, signed bool, out interface{}) error {
	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.slot }()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload string
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = string(b)
		bodyReader = bytes.NewReader(b)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		payload = query.Encode()
		reqURL += "?" + payload
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return err
	}
	if signed {
		for k, v := range c.signer.GenerateHeaders(c.now(), payload) {
			req.Header.Set(k, v)
		}
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.NewNetworkError(op, statusErr)
		}
		return domain.NewFatalNetworkError(op, statusErr)
	}

	var envelope apiResponse
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	if envelope.RetCode != 0 {
		return &domain.ExchangeError{Op: op, RetCode: envelope.RetCode, RetMsg: envelope.RetMsg}
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%s: failed to parse result: %w", op, err)
		}
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
