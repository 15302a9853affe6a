package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
)

// Notification carries one ingested alert to a downstream channel.
type Notification struct {
	AlertID  string
	Record   alert.Record
	Degraded bool
	Test     bool
}

// Notifier forwards ingested alerts.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramOptions configure the Telegram notifier.
type TelegramOptions struct {
	BotToken   string
	ChatID     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
}

// TelegramNotifier posts alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken   string
	chatID     string
	baseURL    string
	maxRetries uint64
	client     *http.Client
	logger     zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram forwarder.
func NewTelegramNotifier(opts TelegramOptions, logger zerolog.Logger) *TelegramNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken:   opts.BotToken,
		chatID:     opts.ChatID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: opts.MaxRetries,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage, retrying with exponential backoff.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	attempts := 0
	err = backoff.Retry(func() error {
		attempts++
		return n.send(ctx, body)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, n.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("forward alert %s after %d attempt(s): %w", note.AlertID, attempts, err)
	}

	n.logger.Info().
		Str("alert_id", note.AlertID).
		Str("symbol", note.Record.Symbol).
		Int("attempts", attempts).
		Msg("alert forwarded (Telegram)")
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("telegram status %d", resp.StatusCode)
		// Bad token or chat id will not fix itself.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}
	return nil
}

func renderMessage(note Notification) string {
	rec := note.Record
	builder := strings.Builder{}
	if note.Test {
		builder.WriteString("[TradingView Test Alert]\n")
	} else {
		builder.WriteString("[TradingView Alert]\n")
	}
	builder.WriteString(fmt.Sprintf("Name: %s\n", rec.AlertName))
	builder.WriteString(fmt.Sprintf("Symbol: %s\n", rec.Symbol))
	if info, ok := rec.Option(); ok {
		builder.WriteString(fmt.Sprintf("Contract: %s %s %s exp %s\n", info.IndexName, info.StrikePrice, info.OptionType, info.ExpiryDate))
	}
	builder.WriteString(fmt.Sprintf("Limit: %s x %s\n", rec.LimitPrice, rec.TotalQuantity))
	if notional, ok := rec.Notional(); ok {
		builder.WriteString(fmt.Sprintf("Notional: %s\n", notional.StringFixed(2)))
	}
	builder.WriteString(fmt.Sprintf("Lot size: %s, slicing: %s, capital: %s%%\n", rec.LotSize, rec.OrderSlicingValue, rec.CapitalPercent))
	builder.WriteString(fmt.Sprintf("Time: %s\n", rec.Timestamp))
	builder.WriteString(fmt.Sprintf("ID: %s", note.AlertID))
	if note.Degraded {
		builder.WriteString(" (not stored)")
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
