package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/signal"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/venue"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram pushes engine events to a chat via the bot sendMessage API.
// Delivery is best effort: a failed notification is logged and dropped, it
// never blocks or fails an execution.
type Telegram struct {
	token  string
	chatID string
	http   *resty.Client
	log    zerolog.Logger
}

// NewTelegram builds a sink for the given bot token and chat id. baseURL is
// overridable for tests; empty selects the public API.
func NewTelegram(token, chatID, baseURL string, log zerolog.Logger) *Telegram {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		log:    log,
	}
}

func (t *Telegram) SignalDetected(ctx context.Context, ev signal.CrossoverEvent) {
	t.send(ctx, formatSignal(ev))
}

func (t *Telegram) OrderExecuted(ctx context.Context, ev signal.CrossoverEvent, conf venue.Confirmation, qty float64) {
	side := "buy"
	if ev.Direction == signal.Death {
		side = "sell"
	}
	t.send(ctx, fmt.Sprintf("✅ %s order executed %s\nqty: %.6f\nprice: %.4f\norder id: %s",
		side, ev.Symbol, qty, conf.Price, conf.OrderID))
}

func (t *Telegram) OrderFailed(ctx context.Context, ev signal.CrossoverEvent, reason string) {
	t.send(ctx, fmt.Sprintf("❌ order failed %s (%s)\n%s", ev.Symbol, ev.Direction, reason))
}

// Suppressed stays off the chat channel; duplicates are diagnostics only.
func (t *Telegram) Suppressed(ctx context.Context, ev signal.CrossoverEvent, reason string) {}

func (t *Telegram) send(ctx context.Context, text string) {
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		t.log.Warn().Err(err).Msg("telegram send failed")
		return
	}
	if resp.IsError() {
		t.log.Warn().Int("status", resp.StatusCode()).Msg("telegram send rejected")
	}
}
