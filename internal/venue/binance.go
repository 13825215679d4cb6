package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	binanceBaseURL        = "https://fapi.binance.com"
	binanceTestnetBaseURL = "https://testnet.binancefuture.com"
	recvWindowMs          = 5000
	timeSyncInterval      = 30 * time.Minute
)

// Binance submits MARKET orders to the Binance USD-M futures REST API.
// Requests are signed with HMAC-SHA256 over the query string and timestamped
// against the venue's server clock.
type Binance struct {
	apiKey    string
	apiSecret string
	http      *resty.Client
	log       zerolog.Logger

	mu         sync.Mutex
	timeOffset time.Duration
	lastSync   time.Time
}

// NewBinance builds a futures client. Testnet switches the base URL; an
// explicit baseURL overrides both (used by tests).
func NewBinance(apiKey, apiSecret string, testnet bool, baseURL string, log zerolog.Logger) *Binance {
	if baseURL == "" {
		baseURL = binanceBaseURL
		if testnet {
			baseURL = binanceTestnetBaseURL
		}
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("X-MBX-APIKEY", apiKey)
	return &Binance{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      client,
		log:       log,
	}
}

type binanceOrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	AvgPrice      string `json:"avgPrice"`
	Status        string `json:"status"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SubmitOrder places a MARKET order and classifies any failure as transient
// or permanent based on transport outcome and HTTP status.
func (b *Binance) SubmitOrder(ctx context.Context, order Order) (Confirmation, error) {
	offset, err := b.serverOffset(ctx)
	if err != nil {
		return Confirmation{}, NewTransient(fmt.Sprintf("time sync: %v", err))
	}

	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", string(order.Side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(order.Qty, 'f', -1, 64))
	if order.ClientOrderID != "" {
		params.Set("newClientOrderId", order.ClientOrderID)
	}
	params.Set("recvWindow", strconv.Itoa(recvWindowMs))
	params.Set("timestamp", strconv.FormatInt(time.Now().Add(offset).UnixMilli(), 10))
	payload := params.Encode()
	payload += "&signature=" + b.sign(payload)

	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(payload).
		Post("/fapi/v1/order")
	if err != nil {
		return Confirmation{}, NewTransient(fmt.Sprintf("submit order: %v", err))
	}
	if resp.IsError() {
		return Confirmation{}, classifyHTTP(resp.StatusCode(), resp.Body())
	}

	var placed binanceOrderResponse
	if err := json.Unmarshal(resp.Body(), &placed); err != nil {
		return Confirmation{}, NewTransient(fmt.Sprintf("decode order response: %v", err))
	}
	price, _ := strconv.ParseFloat(placed.AvgPrice, 64)
	b.log.Info().
		Str("sym", order.Symbol).
		Str("side", string(order.Side)).
		Int64("order_id", placed.OrderID).
		Str("status", placed.Status).
		Msg("binance order accepted")
	return Confirmation{OrderID: strconv.FormatInt(placed.OrderID, 10), Price: price}, nil
}

// serverOffset returns the cached Binance server clock offset, refreshing it
// when stale. Signed requests outside the venue recv window get rejected, so
// local clock drift has to be compensated.
func (b *Binance) serverOffset(ctx context.Context) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.lastSync.IsZero() && time.Since(b.lastSync) < timeSyncInterval {
		return b.timeOffset, nil
	}

	resp, err := b.http.R().SetContext(ctx).Get("/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("server time: http %d", resp.StatusCode())
	}
	var payload struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	b.timeOffset = time.UnixMilli(payload.ServerTime).Sub(time.Now())
	b.lastSync = time.Now()
	b.log.Debug().Dur("offset", b.timeOffset).Msg("binance time synced")
	return b.timeOffset, nil
}

func (b *Binance) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func classifyHTTP(status int, body []byte) *Error {
	var msg binanceError
	reason := fmt.Sprintf("http %d", status)
	if err := json.Unmarshal(body, &msg); err == nil && msg.Msg != "" {
		reason = fmt.Sprintf("http %d code %d: %s", status, msg.Code, msg.Msg)
	}
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == 418, // binance IP ban escalation, backs off like a rate limit
		status >= 500:
		return NewTransient(reason)
	default:
		return NewPermanent(reason)
	}
}
