// Package notify delivers operator alerts. Delivery is fire-and-forget: a
// notifier error is logged by the implementation and never reaches worker
// logic.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
)

// Options tweak one message's delivery.
type Options struct {
	// Silent suppresses the client-side notification sound.
	Silent bool
}

type Notifier interface {
	Send(text string, opts ...Options)
}

// Telegram posts messages to a chat via the Bot API.
type Telegram struct {
	token  string
	chatID string
	http   *http.Client
	log    *zap.Logger
}

func NewTelegram(token, chatID string, log *zap.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 10 * time.Second},
		log:    log.Named("notify.telegram"),
	}
}

func (t *Telegram) Send(text string, opts ...Options) {
	var options Options
	if len(opts) > 0 {
		options = opts[0]
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id":              t.chatID,
		"text":                 text,
		"disable_notification": options.Silent,
	})
	if err != nil {
		t.log.Warn("notification payload marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.log.Warn("notification request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		t.log.Warn("notification delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Warn("notification rejected", zap.Int("status", resp.StatusCode))
	}
}

// Noop is used when no notification channel is configured.
type Noop struct{}

func (Noop) Send(text string, opts ...Options) {}

func New(cfg config.Config, log *zap.Logger) Notifier {
	if cfg.Notify.TelegramToken == "" || cfg.Notify.TelegramChatID == "" {
		log.Info("no notification channel configured, alerts are log-only")
		return Noop{}
	}
	return NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, log)
}

var Module = fx.Module("notify",
	fx.Provide(New),
)
