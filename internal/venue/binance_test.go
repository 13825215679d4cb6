package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, orderHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/time", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"serverTime":%d}`, time.Now().UnixMilli())
	})
	mux.HandleFunc("/fapi/v1/order", orderHandler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestBinanceSubmitOrderSignsRequest(t *testing.T) {
	const secret = "test-secret"
	var got url.Values

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm returned error: %v", err)
		}
		got = r.PostForm
		fmt.Fprint(w, `{"orderId":12345,"clientOrderId":"abc","avgPrice":"101.5","status":"FILLED"}`)
	})

	client := NewBinance("test-key", secret, false, server.URL, zerolog.Nop())
	conf, err := client.SubmitOrder(context.Background(), Order{
		Symbol: "BTCUSDT", Side: Buy, Qty: 0.01, ClientOrderID: "abc",
	})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if conf.OrderID != "12345" {
		t.Fatalf("unexpected order id %q", conf.OrderID)
	}
	if conf.Price != 101.5 {
		t.Fatalf("unexpected fill price %.2f", conf.Price)
	}

	if got.Get("symbol") != "BTCUSDT" || got.Get("side") != "BUY" || got.Get("type") != "MARKET" {
		t.Fatalf("unexpected order params: %v", got)
	}
	sig := got.Get("signature")
	if sig == "" {
		t.Fatalf("missing signature")
	}
	unsigned := url.Values{}
	for key, vals := range got {
		if key == "signature" {
			continue
		}
		unsigned[key] = vals
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unsigned.Encode()))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Fatalf("signature mismatch: got %s want %s", sig, want)
	}
}

func TestBinanceClassifiesRateLimitAsTransient(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests"}`)
	})

	client := NewBinance("k", "s", false, server.URL, zerolog.Nop())
	_, err := client.SubmitOrder(context.Background(), Order{Symbol: "BTCUSDT", Side: Buy, Qty: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("expected 429 to classify transient, got %v", err)
	}
}

func TestBinanceClassifiesRejectAsPermanent(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-2019,"msg":"Margin is insufficient."}`)
	})

	client := NewBinance("k", "s", false, server.URL, zerolog.Nop())
	_, err := client.SubmitOrder(context.Background(), Order{Symbol: "BTCUSDT", Side: Sell, Qty: 1})
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("expected 400 to classify permanent, got %v", err)
	}
}

func TestBinanceClassifiesServerErrorAsTransient(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := NewBinance("k", "s", false, server.URL, zerolog.Nop())
	_, err := client.SubmitOrder(context.Background(), Order{Symbol: "BTCUSDT", Side: Sell, Qty: 1})
	if !IsTransient(err) {
		t.Fatalf("expected 502 to classify transient, got %v", err)
	}
}

func TestSideFor(t *testing.T) {
	if SideFor("GOLDEN") != Buy {
		t.Fatalf("golden must buy")
	}
	if SideFor("DEATH") != Sell {
		t.Fatalf("death must sell")
	}
}
