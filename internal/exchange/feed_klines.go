package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/metrics"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
)

// runBinanceKlines polls the futures kline endpoint once per poll interval
// and emits a sample per symbol only when a new candle has opened, i.e. the
// previous candle closed. Re-reads of the same open candle are skipped so a
// downstream moving average advances once per candle, not once per poll.
func (f *Feed) runBinanceKlines(ctx context.Context, out chan<- signal.PriceSample) error {
	symbols := f.snapshotSymbols()
	if len(symbols) == 0 {
		return fmt.Errorf("kline feed requires at least one symbol")
	}

	client := resty.New().SetBaseURL(f.restBaseURL).SetTimeout(10 * time.Second)
	lastOpen := make(map[string]int64, len(symbols))

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	f.log.Info().
		Str("provider", ProviderBinanceKlines).
		Strs("symbols", symbols).
		Str("interval", f.klineInterval).
		Msg("kline polling started")

	for {
		for _, sym := range symbols {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sample, openTime, err := f.fetchLatestClosedKline(ctx, client, sym)
			if err != nil {
				f.log.Warn().Err(err).Str("sym", sym).Msg("kline fetch failed")
				continue
			}
			if lastOpen[sym] == openTime {
				continue
			}
			lastOpen[sym] = openTime

			select {
			case out <- sample:
				metrics.SamplesTotal.WithLabelValues(sym).Inc()
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// fetchLatestClosedKline returns the close of the most recent finished candle
// along with its open time, used for new-candle detection.
func (f *Feed) fetchLatestClosedKline(ctx context.Context, client *resty.Client, symbol string) (signal.PriceSample, int64, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": f.klineInterval,
			"limit":    "2",
		}).
		Get("/fapi/v1/klines")
	if err != nil {
		return signal.PriceSample{}, 0, err
	}
	if resp.IsError() {
		return signal.PriceSample{}, 0, fmt.Errorf("klines: http %d", resp.StatusCode())
	}

	// Each kline is a positional array: openTime, open, high, low, close, ...
	var klines [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &klines); err != nil {
		return signal.PriceSample{}, 0, fmt.Errorf("decode klines: %w", err)
	}
	if len(klines) < 2 {
		return signal.PriceSample{}, 0, fmt.Errorf("need at least 2 klines, got %d", len(klines))
	}
	closed := klines[len(klines)-2]
	if len(closed) < 7 {
		return signal.PriceSample{}, 0, fmt.Errorf("short kline row: %d fields", len(closed))
	}

	var openTime, closeTime int64
	if err := json.Unmarshal(closed[0], &openTime); err != nil {
		return signal.PriceSample{}, 0, fmt.Errorf("kline open time: %w", err)
	}
	if err := json.Unmarshal(closed[6], &closeTime); err != nil {
		return signal.PriceSample{}, 0, fmt.Errorf("kline close time: %w", err)
	}
	var closeStr string
	if err := json.Unmarshal(closed[4], &closeStr); err != nil {
		return signal.PriceSample{}, 0, fmt.Errorf("kline close: %w", err)
	}
	px, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return signal.PriceSample{}, 0, fmt.Errorf("parse close %q: %w", closeStr, err)
	}

	return signal.PriceSample{Symbol: symbol, Price: px, Ts: time.UnixMilli(closeTime)}, openTime, nil
}
