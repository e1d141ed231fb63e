package bybit

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	maxRetries       = 10
	baseDelay        = 1 * time.Second
	maxDelay         = 60 * time.Second
	pingInterval     = 20 * time.Second
	readTimeout      = 60 * time.Second
	handshakeTimeout = 10 * time.Second
	authExpiry       = 10 * time.Second

	retCodeLeverageNotModified = 110043
)

// apiResponse is the v5 REST envelope.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

type instrumentsResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol      string `json:"symbol"`
		Status      string `json:"status"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
		LotSizeFilter struct {
			QtyStep       string `json:"qtyStep"`       // derivatives
			BasePrecision string `json:"basePrecision"` // spot
			MinOrderQty   string `json:"minOrderQty"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
}

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	OrderLinkID string `json:"orderLinkId"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// wsRequest is an operation sent on a stream (subscribe, auth, ping).
type wsRequest struct {
	ReqID string        `json:"req_id,omitempty"`
	Op    string        `json:"op"`
	Args  []interface{} `json:"args,omitempty"`
}

// wsMessage covers both operation acks and topic pushes.
type wsMessage struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // snapshot | delta
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
}

type orderbookData struct {
	Symbol string      `json:"s"`
	Bids   [][2]string `json:"b"`
	Asks   [][2]string `json:"a"`
}

type tradeData struct {
	Time   int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Size   string `json:"v"`
	Price  string `json:"p"`
}

type orderData struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Side        string `json:"side"`
	OrderStatus string `json:"orderStatus"`
	Price       string `json:"price"`
	AvgPrice    string `json:"avgPrice"`
	CumExecQty  string `json:"cumExecQty"`
	CumExecFee  string `json:"cumExecFee"`
	UpdatedTime string `json:"updatedTime"`
}

// calculateBackoff returns the delay for the current retry attempt
func calculateBackoff(retryCount int) time.Duration {
	// Cap retry count to prevent overflow (2^6 = 64 seconds > max 60s)
	if retryCount > 6 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// parseNumber converts an exchange decimal string. Empty means zero.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func formatNumber(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func msTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
