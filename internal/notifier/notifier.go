// Package notifier is the best-effort delivery sink for emitted
// signals and supervisor-level fatal/warning messages. Delivery never
// blocks signal persistence: Store.insert_signal commits first, and
// `notified` only flips once the notifier confirms delivery.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/httpretry"
)

// Sink is the external interface the Signal Engine and Supervisor
// depend on: a bounded text payload, best-effort delivered.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// SignalMessage renders a bounded, human-readable text payload for an
// emitted signal: mint, symbol and the firing metrics. No markup.
func SignalMessage(s *domain.EmittedSignal) string {
	return fmt.Sprintf(
		"signal mint=%s symbol=%s ts=%d ema_cross=%t vol_spike=%.2f rsi=%.2f reasons=%s",
		s.Mint, s.Symbol, s.SignalTS, s.EMACross, s.VolSpike, s.RSI, s.Reasons,
	)
}

// TelegramClient implements Sink against the Telegram Bot API's
// sendMessage endpoint, sharing the httpretry backoff shape used by
// the catalog, enrichment and aggregator clients.
type TelegramClient struct {
	token        string
	chatID       string
	retry        *httpretry.Client
	sendEndpoint string // overridden in tests; defaults to the real Bot API URL
}

// Option configures TelegramClient.
type Option func(*TelegramClient)

// WithRetryClient overrides the shared retry client.
func WithRetryClient(c *httpretry.Client) Option {
	return func(t *TelegramClient) { t.retry = c }
}

// NewTelegramClient builds a Sink posting to the Telegram Bot API.
// token and chatID come from NOTIFIER_TOKEN / NOTIFIER_CHANNEL_ID.
func NewTelegramClient(token, chatID string, opts ...Option) *TelegramClient {
	t := &TelegramClient{
		token:  token,
		chatID: chatID,
		retry:  httpretry.New(httpretry.WithTimeout(10 * time.Second)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Sink = (*TelegramClient)(nil)

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts text to the configured chat. Failure to deliver is
// returned to the caller but never retried beyond httpretry's own
// bounded attempts; the caller decides whether to keep `notified`
// false and retry on a later tick.
func (t *TelegramClient) Send(ctx context.Context, text string) error {
	if t.token == "" {
		return fmt.Errorf("notifier: NOTIFIER_TOKEN not configured")
	}
	endpoint := t.sendEndpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", url.PathEscape(t.token))
	}
	payload, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal notifier payload: %w", err)
	}

	_, err = t.retry.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("send notifier message: %w", err)
	}
	return nil
}

// SignalStore is the read/write slice of storage.SignalStore the
// Dispatcher needs: fetch unnotified rows, mark one delivered.
type SignalStore interface {
	UnnotifiedSignals(ctx context.Context) ([]*domain.EmittedSignal, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Dispatcher drains unnotified signals to a Sink. The Signal Engine
// hands off a new signal's id via Notify (a non-blocking nudge); the
// Dispatcher's own loop is the source of truth and also catches up any
// signal left unnotified after a crash between insert and delivery.
type Dispatcher struct {
	sink    Sink
	signals SignalStore
	logger  *log.Logger
	nudge   chan struct{}
}

// NewDispatcher builds a Dispatcher. logger defaults to log.Default()
// if nil.
func NewDispatcher(sink Sink, signals SignalStore, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{sink: sink, signals: signals, logger: logger, nudge: make(chan struct{}, 1)}
}

// Notify wakes the dispatcher loop to drain unnotified signals
// promptly instead of waiting for the next poll tick. Non-blocking:
// the id itself is not needed, UnnotifiedSignals is the source of
// truth.
func (d *Dispatcher) Notify(id int64) {
	select {
	case d.nudge <- struct{}{}:
	default:
	}
}

// Run drains unnotified signals on every nudge and every poll tick
// until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.nudge:
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	pending, err := d.signals.UnnotifiedSignals(ctx)
	if err != nil {
		d.logger.Printf("fetch unnotified signals failed: %v", err)
		return
	}
	for _, s := range pending {
		if err := d.sink.Send(ctx, SignalMessage(s)); err != nil {
			d.logger.Printf("deliver signal %d failed, will retry: %v", s.ID, err)
			continue
		}
		if err := d.signals.MarkNotified(ctx, s.ID); err != nil {
			d.logger.Printf("mark_notified failed for signal %d: %v", s.ID, err)
		}
	}
}

// FatalMessage renders the single bounded message the Supervisor sends
// before a non-recoverable exit.
func FatalMessage(component string, cause error) string {
	return fmt.Sprintf("fatal: %s: %v", component, cause)
}

// WarningMessage renders a rate-limited transient-issue report; the
// Supervisor enforces the error_report_interval spacing, not this
// formatter.
func WarningMessage(component string, cause error) string {
	return fmt.Sprintf("warning: %s: %v", component, cause)
}

// ActivitySnapshotMessage renders the 10-minute ingestor activity tick
// into the bounded text payload the notifier sink accepts.
func ActivitySnapshotMessage(messages, errors, poolEvents, swapEvents, dropped int64) string {
	fields := []string{
		fmt.Sprintf("messages=%d", messages),
		fmt.Sprintf("errors=%d", errors),
		fmt.Sprintf("pool_events=%d", poolEvents),
		fmt.Sprintf("swap_events=%d", swapEvents),
		fmt.Sprintf("dropped_events=%d", dropped),
	}
	return "activity: " + strings.Join(fields, " ")
}
